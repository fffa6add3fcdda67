// Package sales holds the domain model for the retail sales import and the
// in-memory transforms that turn a denormalized export into normalized
// entities: field coercion, customer synthesis, product deduplication, and
// order aggregation.
package sales

import "time"

// Columns is the canonical field order produced by the parser and consumed by
// FromRow. The parser maps source headers ("Order ID", "ship-state", ...)
// onto these names.
func Columns() []string {
	return []string{"order_id", "sku", "style", "category", "amount", "qty", "date", "ship_state"}
}

// Positional indices into Columns(). Keep in sync with Columns.
const (
	colOrderID = iota
	colSKU
	colStyle
	colCategory
	colAmount
	colQty
	colDate
	colShipState
	colCount
)

// RawRecord is one line item as read from the export. It exists only during a
// single import run.
type RawRecord struct {
	OrderID   string
	SKU       string
	Style     string
	Category  string
	Amount    float64
	Qty       int
	Date      *time.Time // nil when the source date is missing/unparsable
	ShipState string     // "" when the source ship-state is null
}

// Customer is a synthetic customer fabricated by the import run. Region is
// assigned randomly at creation and overwritten in memory by the order
// aggregator before persistence; the stored row is never updated afterwards.
type Customer struct {
	ID      int64
	Name    string
	Region  string
	Contact string
}

// Product is one canonical product per SKU. Duplicate SKUs in the export
// collapse to the first-seen (Style, Category, Amount) tuple.
type Product struct {
	SKU      string
	Style    string
	Category string
	Price    float64
}

// Order is one order aggregated from its line items.
type Order struct {
	OrderID    string
	CustomerID int64
	Date       *time.Time
	Total      float64
}

// OrderDetail is one surviving line item of an order.
type OrderDetail struct {
	OrderID   string
	SKU       string
	Qty       int
	UnitPrice float64
}

// Snapshot is the fully materialized batch handed to the persistence sink.
// All four entity sets are complete and referentially consistent before any
// insert happens.
type Snapshot struct {
	Customers []Customer
	Products  []Product
	Orders    []Order
	Details   []OrderDetail
}
