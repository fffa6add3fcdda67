package sales

// DedupeProducts extracts one canonical Product per distinct SKU, keeping the
// first-encountered (Style, Category, Amount) tuple in input order.
//
// First-seen-wins requires sequence-preserving dedupe: an insert-if-absent
// keyed set over the input order, never an unordered map iteration. The sink
// additionally treats product inserts as conflict-ignoring, so a duplicate SKU
// arriving in a later batch cannot clobber the stored row either.
func DedupeProducts(records []RawRecord) []Product {
	seen := make(map[string]struct{}, len(records))
	out := make([]Product, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.SKU]; ok {
			continue
		}
		seen[r.SKU] = struct{}{}
		out = append(out, Product{
			SKU:      r.SKU,
			Style:    r.Style,
			Category: r.Category,
			Price:    r.Amount,
		})
	}
	return out
}
