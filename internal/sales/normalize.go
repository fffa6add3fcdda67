package sales

import (
	"strconv"
	"strings"
	"time"
)

// FromRow coerces one positional source row (aligned to Columns()) into a
// RawRecord.
//
// Coercion policy is best-effort: malformed optional fields degrade to safe
// defaults and never abort the run.
//
//   - Date: loose multi-layout parse; unparsable/missing → nil.
//   - Amount: float; unparsable or negative → 0.0 (never null).
//   - Qty: integer; unparsable → 0 (float forms like "2.0" truncate).
//
// The only row-filtering rule: rows with an empty OrderID or SKU are dropped,
// reported via ok=false.
func FromRow(v []string) (RawRecord, bool) {
	if len(v) < colCount {
		return RawRecord{}, false
	}

	orderID := v[colOrderID]
	sku := v[colSKU]
	if orderID == "" || sku == "" {
		return RawRecord{}, false
	}

	return RawRecord{
		OrderID:   orderID,
		SKU:       sku,
		Style:     v[colStyle],
		Category:  v[colCategory],
		Amount:    coerceAmount(v[colAmount]),
		Qty:       coerceQty(v[colQty]),
		Date:      coerceDate(v[colDate]),
		ShipState: v[colShipState],
	}, true
}

func coerceAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func coerceQty(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Exports sometimes carry quantities as floats ("2.0"); truncate like the
	// historical importer did.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// dateLayouts are tried in order. The Amazon-style export writes MM-DD-YY
// ("04-30-22"); the remaining layouts cover common variants seen in practice.
var dateLayouts = []string{
	"01-02-06",
	"2006-01-02",
	"01/02/2006",
	"01/02/06",
	"01-02-2006",
	"2006/01/02",
}

func coerceDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return &t
		}
	}
	return nil
}
