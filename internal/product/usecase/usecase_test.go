package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/product/repository"
	"github.com/fekuna/omnipos-inventory-service/internal/store"
	"github.com/fekuna/omnipos-inventory-service/internal/store/memory"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/fekuna/omnipos-inventory-service/pkg/search"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type fakeSearcher struct {
	indexed map[string]interface{}
	hits    []model.Product
	err     error
}

func (s *fakeSearcher) CreateIndex(ctx context.Context, index, mapping string) error { return nil }

func (s *fakeSearcher) Index(ctx context.Context, index, id string, doc interface{}) error {
	s.indexed[id] = doc
	return nil
}

func (s *fakeSearcher) Search(ctx context.Context, index string, query map[string]interface{}) (*search.SearchResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &search.SearchResponse{}
	for _, p := range s.hits {
		src, _ := json.Marshal(p)
		res.Hits.Hits = append(res.Hits.Hits, struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		}{ID: p.ID, Source: src})
	}
	res.Hits.Total.Value = len(s.hits)
	return res, nil
}

func seed(t *testing.T, mem *memory.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	mem.Insert(ctx, store.TableCategories, store.Row{"id": "c1", "name": "Tools", "created_at": now, "updated_at": now})
	for _, p := range []store.Row{
		{"id": "p1", "category_id": "c1", "name": "Hammer", "sku": "HAM-01", "unit": "pcs", "min_stock_level": int64(2)},
		{"id": "p2", "category_id": "c1", "name": "Screwdriver", "sku": "SCR-01", "unit": "pcs"},
		{"id": "p3", "name": "Glue", "sku": "GLU-HAM", "unit": "ml"},
	} {
		p["created_at"], p["updated_at"] = now, now
		if _, err := mem.Insert(ctx, store.TableProducts, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

var reader = auth.WithPrincipal(context.Background(), auth.Principal{UserID: "u", Role: policy.RoleUser})

func authorizer() *auth.Authorizer {
	return auth.NewAuthorizer(policy.MustNewEngine(policy.DefaultPermissionSet()), nil)
}

func TestGetProductAttachesCategory(t *testing.T) {
	mem := memory.New()
	seed(t, mem)
	uc := NewProductUseCase(repository.NewStoreRepository(mem), authorizer(), nil, nil, logger.NewNop())

	p, err := uc.GetProduct(reader, "p1")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Category == nil || p.Category.Name != "Tools" || p.MinStockLevel != 2 {
		t.Fatalf("product = %+v", p)
	}
	if _, err := uc.GetProduct(reader, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	if _, err := uc.GetProduct(context.Background(), "p1"); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Fatalf("anonymous err = %v", err)
	}
}

func TestListProductsUsesCache(t *testing.T) {
	mem := memory.New()
	seed(t, mem)
	c := &fakeCache{data: map[string][]byte{}}
	uc := NewProductUseCase(repository.NewStoreRepository(mem), authorizer(), c, nil, logger.NewNop())

	first, err := uc.ListProducts(reader)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 || first[0].Name != "Glue" || first[1].Name != "Hammer" {
		t.Fatalf("products = %+v", first)
	}

	calls := mem.Calls()
	second, err := uc.ListProducts(reader)
	if err != nil || len(second) != 3 {
		t.Fatalf("cached list = %v, %v", second, err)
	}
	if mem.Calls() != calls {
		t.Fatal("second list should be served from cache")
	}

	uc.IndexProduct(context.Background(), &first[0])
	if _, ok := c.data[listCacheKey]; ok {
		t.Fatal("IndexProduct must invalidate the list cache")
	}
}

func TestSearchFallsBackToStore(t *testing.T) {
	mem := memory.New()
	seed(t, mem)
	es := &fakeSearcher{indexed: map[string]interface{}{}, err: errors.New("cluster red")}
	uc := NewProductUseCase(repository.NewStoreRepository(mem), authorizer(), nil, es, logger.NewNop())

	got, err := uc.SearchProducts(reader, "ham")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want name and sku matches, got %+v", got)
	}
}

func TestSearchUsesIndex(t *testing.T) {
	mem := memory.New()
	es := &fakeSearcher{indexed: map[string]interface{}{}, hits: []model.Product{{Name: "Indexed Hammer", SKU: "X"}}}
	uc := NewProductUseCase(repository.NewStoreRepository(mem), authorizer(), nil, es, logger.NewNop())

	got, err := uc.SearchProducts(reader, "hammer")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Indexed Hammer" {
		t.Fatalf("got %+v", got)
	}

	p := &model.Product{BaseModel: model.BaseModel{ID: "p9"}, Name: "New"}
	uc.IndexProduct(context.Background(), p)
	if es.indexed["p9"] == nil {
		t.Fatal("product should have been indexed")
	}
}
