package model

import (
	"strings"
	"time"
)

// OrderItem is a single line item on an extracted purchase order.
type OrderItem struct {
	Name           string   `json:"name"`
	NormalizedName string   `json:"normalized_name,omitempty"`
	Quantity       float64  `json:"quantity"`
	Unit           string   `json:"unit"`
	UnitPrice      *float64 `json:"unit_price,omitempty"`
	SKU            string   `json:"sku,omitempty"`
	ASIN           string   `json:"asin,omitempty"`
}

// Key returns the aggregation join key for the item: NormalizedName when
// present, otherwise the lower-cased, trimmed Name. Keys are deliberately
// not supplier-scoped, so the same consumable bought from two suppliers
// rolls up into one tracked item.
func (it OrderItem) Key() string {
	if it.NormalizedName != "" {
		return it.NormalizedName
	}
	return strings.ToLower(strings.TrimSpace(it.Name))
}

// ExtractedOrder is a structured purchase order recovered from one email.
type ExtractedOrder struct {
	ID              string      `json:"id"`
	OriginalEmailID string      `json:"original_email_id"`
	Supplier        string      `json:"supplier"`
	OrderDate       time.Time   `json:"order_date"`
	TotalAmount     *float64    `json:"total_amount,omitempty"`
	Items           []OrderItem `json:"items"`
	Confidence      float64     `json:"confidence"`
}
