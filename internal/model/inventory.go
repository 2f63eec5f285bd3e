package model

import "time"

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

// Inventory is the current quantity of one product. Quantity never goes below zero.
type Inventory struct {
	BaseModel
	ProductID string   `db:"product_id" json:"product_id"`
	Quantity  int64    `db:"quantity" json:"quantity"`
	Location  *string  `db:"location" json:"location"`
	Product   *Product `db:"-" json:"product,omitempty"` // Joined data
}

// InventoryHistory is one append-only ledger entry.
// NewQuantity always equals PreviousQuantity + QuantityChange.
type InventoryHistory struct {
	ID               string       `db:"id" json:"id"`
	ProductID        string       `db:"product_id" json:"product_id"`
	QuantityChange   int64        `db:"quantity_change" json:"quantity_change"`
	PreviousQuantity int64        `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int64        `db:"new_quantity" json:"new_quantity"`
	Type             MovementType `db:"type" json:"type"`
	Reason           *string      `db:"reason" json:"reason"`
	CreatedBy        string       `db:"created_by" json:"created_by"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// HistoryView is a history entry with the product, category and operator it refers to.
// Any of the joined parts is nil when the referenced row no longer exists.
type HistoryView struct {
	InventoryHistory
	Product  *Product     `json:"product,omitempty"`
	Category *Category    `json:"category,omitempty"`
	Operator *UserProfile `json:"created_by_user,omitempty"`
}
