package sales

import (
	"fmt"
	"math/rand/v2"
)

// regions is the fixed pool used for the initial (pre-backfill) region of a
// synthetic customer.
var regions = [...]string{"North", "South", "East", "West"}

// SynthesizeCustomers fabricates the customer population for a run and
// assigns every distinct order to a customer.
//
// Population size is max(1, len(orderIDs)/3) using floor division. The model
// intentionally creates fewer customers than orders, so some customers look
// like repeat buyers.
//
// Assignment is one independent uniform draw (with replacement) per distinct
// order, in the order the IDs are supplied. Callers pass orderIDs in
// first-appearance order so a fixed rng yields a fully deterministic mapping.
//
// rng is required: randomness is an injected, seedable dependency, not global
// state.
func SynthesizeCustomers(orderIDs []string, rng *rand.Rand) ([]Customer, map[string]int64) {
	size := len(orderIDs) / 3
	if size < 1 {
		size = 1
	}

	customers := make([]Customer, 0, size)
	for i := 1; i <= size; i++ {
		customers = append(customers, Customer{
			ID:      int64(i),
			Name:    fmt.Sprintf("Customer_%d", i),
			Region:  regions[rng.IntN(len(regions))],
			Contact: fmt.Sprintf("user%d@example.com", i),
		})
	}

	assign := make(map[string]int64, len(orderIDs))
	for _, id := range orderIDs {
		assign[id] = int64(rng.IntN(size) + 1)
	}

	return customers, assign
}

// DistinctOrderIDs returns the distinct order IDs of the normalized records in
// first-appearance order.
func DistinctOrderIDs(records []RawRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.OrderID]; ok {
			continue
		}
		seen[r.OrderID] = struct{}{}
		out = append(out, r.OrderID)
	}
	return out
}
