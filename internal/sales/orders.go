package sales

// AggregateOrders groups normalized records by OrderID and emits one Order per
// group plus one OrderDetail per constituent record.
//
// Groups are processed in first-appearance order of OrderID; rows within a
// group follow input order. Per group:
//
//   - Date and ship-state come from the group's first row; a null ship-state
//     becomes the literal "Unknown".
//   - The assigned customer's Region is overwritten unconditionally with the
//     group's ship-state. When several orders map to one customer, the
//     last-processed group wins. This is an accepted artifact of sequential
//     group processing, not a merge.
//   - Total is the sum of Amount over all rows in the group.
//
// There is no group-level error path: an all-zero group or a nil date still
// produces an Order.
//
// customers is mutated in place (region backfill); it must be indexed so that
// customers[id-1].ID == id, which is how SynthesizeCustomers builds it.
func AggregateOrders(records []RawRecord, assign map[string]int64, customers []Customer) ([]Order, []OrderDetail) {
	groupIx := make(map[string]int, len(records))
	orders := make([]Order, 0, len(assign))
	details := make([]OrderDetail, 0, len(records))

	for _, r := range records {
		ix, ok := groupIx[r.OrderID]
		if !ok {
			custID := assign[r.OrderID]

			ship := r.ShipState
			if ship == "" {
				ship = "Unknown"
			}
			if custID >= 1 && int(custID) <= len(customers) {
				customers[custID-1].Region = ship
			}

			orders = append(orders, Order{
				OrderID:    r.OrderID,
				CustomerID: custID,
				Date:       r.Date,
			})
			ix = len(orders) - 1
			groupIx[r.OrderID] = ix
		}

		orders[ix].Total += r.Amount
		details = append(details, OrderDetail{
			OrderID:   r.OrderID,
			SKU:       r.SKU,
			Qty:       r.Qty,
			UnitPrice: r.Amount,
		})
	}

	return orders, details
}
