package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/apperror"
	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/policy"
	"github.com/fekuna/omnipos-inventory-service/internal/product"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const (
	indexName    = "products"
	listCacheKey = "products:list"
	listCacheTTL = 5 * time.Minute
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"category_id": { "type": "keyword" },
			"name": { "type": "text" },
			"description": { "type": "text" },
			"sku": { "type": "keyword" },
			"unit": { "type": "keyword" },
			"created_at": { "type": "date" }
		}
	}
}`

type productUseCase struct {
	repo   product.Repository
	authz  *auth.Authorizer
	cache  product.Cache
	es     product.Searcher
	logger logger.ZapLogger
}

// NewProductUseCase wires the catalog. cache and es are optional.
func NewProductUseCase(repo product.Repository, authz *auth.Authorizer, cache product.Cache, es product.Searcher, log logger.ZapLogger) product.UseCase {
	return &productUseCase{
		repo:   repo,
		authz:  authz,
		cache:  cache,
		es:     es,
		logger: log,
	}
}

func (uc *productUseCase) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceProducts, policy.ActionRead); err != nil {
		return nil, err
	}

	p, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperror.NotFoundError{Entity: "product", Key: id}
	}
	return p, nil
}

func (uc *productUseCase) ListProducts(ctx context.Context) ([]model.Product, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceProducts, policy.ActionRead); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		val, err := uc.cache.Get(ctx, listCacheKey)
		if err == nil {
			var products []model.Product
			if err := json.Unmarshal(val, &products); err == nil {
				return products, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			uc.logger.Warn("product cache read failed", zap.Error(err))
		}
	}

	products, err := uc.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if data, err := json.Marshal(products); err == nil {
			if err := uc.cache.Set(ctx, listCacheKey, data, listCacheTTL); err != nil {
				uc.logger.Warn("product cache write failed", zap.Error(err))
			}
		}
	}
	return products, nil
}

// SearchProducts asks Elasticsearch first and falls back to the store when it is not
// configured or fails.
func (uc *productUseCase) SearchProducts(ctx context.Context, query string) ([]model.Product, error) {
	if _, err := uc.authz.Require(ctx, policy.ResourceProducts, policy.ActionRead); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return uc.repo.FindAll(ctx)
	}

	if uc.es != nil {
		products, err := uc.searchIndex(ctx, query)
		if err == nil {
			return products, nil
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	return uc.repo.Search(ctx, query)
}

func (uc *productUseCase) searchIndex(ctx context.Context, query string) ([]model.Product, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query":  fmt.Sprintf("*%s*", query),
				"fields": []string{"name^3", "sku", "description"},
			},
		},
		"size": 100,
	}

	res, err := uc.es.Search(ctx, indexName, q)
	if err != nil {
		return nil, err
	}

	products := make([]model.Product, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var p model.Product
		if err := json.Unmarshal(hit.Source, &p); err != nil {
			uc.logger.Warn("skipping undecodable search hit", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (uc *productUseCase) IndexProduct(ctx context.Context, p *model.Product) {
	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, listCacheKey); err != nil {
			uc.logger.Warn("product cache invalidation failed", zap.Error(err))
		}
	}

	if uc.es == nil {
		return
	}
	if err := uc.es.CreateIndex(ctx, indexName, indexMapping); err != nil {
		uc.logger.Warn("failed to ensure product index", zap.Error(err))
	}
	if err := uc.es.Index(ctx, indexName, p.ID, p); err != nil {
		uc.logger.Error("failed to index product", zap.String("product_id", p.ID), zap.Error(err))
	}
}
