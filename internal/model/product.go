package model

type Product struct {
	BaseModel
	CategoryID    string    `db:"category_id" json:"category_id"`
	Name          string    `db:"name" json:"name"`
	Description   *string   `db:"description" json:"description"`
	SKU           string    `db:"sku" json:"sku"`
	Unit          string    `db:"unit" json:"unit"`
	MinStockLevel int64     `db:"min_stock_level" json:"min_stock_level"`
	Category      *Category `db:"-" json:"category,omitempty"` // Joined data
}
