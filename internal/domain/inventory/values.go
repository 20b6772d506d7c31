package inventory

import (
	"strings"
	"time"
)

// DefaultUOM is the unit of measure used when none is given.
const DefaultUOM = "pcs"

// SKU is the business key of an inventory item.
type SKU struct {
	value string
}

// NewSKU trims surrounding whitespace and rejects an empty result.
func NewSKU(raw string) (SKU, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return SKU{}, newError(KindInvalidValue, "sku", "sku cannot be empty")
	}
	return SKU{value: cleaned}, nil
}

func (s SKU) String() string {
	return s.value
}

// Quantity is a non-negative amount in a unit of measure.
type Quantity struct {
	amount int
	uom    string
}

// NewQuantity builds a quantity. An empty uom means DefaultUOM.
func NewQuantity(amount int, uom string) (Quantity, error) {
	if amount < 0 {
		return Quantity{}, newError(KindInvalidValue, "quantity", "quantity cannot be negative")
	}
	if uom == "" {
		uom = DefaultUOM
	}
	return Quantity{amount: amount, uom: uom}, nil
}

// MustQuantity is NewQuantity for literals known to be valid.
func MustQuantity(amount int, uom string) Quantity {
	q, err := NewQuantity(amount, uom)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Amount() int {
	return q.amount
}

func (q Quantity) UOM() string {
	if q.uom == "" {
		return DefaultUOM
	}
	return q.uom
}

func (q Quantity) Add(other Quantity) (Quantity, error) {
	if q.UOM() != other.UOM() {
		return Quantity{}, newError(KindUnitMismatch, "quantity add", "uom mismatch: "+q.UOM()+" vs "+other.UOM())
	}
	return Quantity{amount: q.amount + other.amount, uom: q.UOM()}, nil
}

func (q Quantity) Sub(other Quantity) (Quantity, error) {
	if q.UOM() != other.UOM() {
		return Quantity{}, newError(KindUnitMismatch, "quantity sub", "uom mismatch: "+q.UOM()+" vs "+other.UOM())
	}
	if q.amount-other.amount < 0 {
		return Quantity{}, newError(KindUnderflow, "quantity sub", "resulting quantity cannot be negative")
	}
	return Quantity{amount: q.amount - other.amount, uom: q.UOM()}, nil
}

// Threshold is the minimum available quantity before an item counts as low stock.
type Threshold struct {
	minQty int
}

func NewThreshold(minQty int) (Threshold, error) {
	if minQty < 0 {
		return Threshold{}, newError(KindInvalidValue, "threshold", "min quantity cannot be negative")
	}
	return Threshold{minQty: minQty}, nil
}

func (t Threshold) MinQty() int {
	return t.minQty
}

// IsLow is a strict comparison: a quantity equal to the minimum is not low.
func (t Threshold) IsLow(q Quantity) bool {
	return q.amount < t.minQty
}

// Batch is optional lot metadata. Nothing enforces it.
type Batch struct {
	Code      string     `json:"code,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
