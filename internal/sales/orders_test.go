package sales

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestAggregateOrdersSingleGroup(t *testing.T) {
	// The canonical two-line-item scenario: one order, two SKUs.
	records := []RawRecord{
		{OrderID: "A1", SKU: "S1", Amount: 10.0, Qty: 1, Date: date(2022, 4, 30), ShipState: "MAHARASHTRA"},
		{OrderID: "A1", SKU: "S2", Amount: 15.0, Qty: 2, Date: date(2022, 5, 1), ShipState: "KERALA"},
	}
	customers := []Customer{{ID: 1, Name: "Customer_1", Region: "North"}}
	assign := map[string]int64{"A1": 1}

	orders, details := AggregateOrders(records, assign, customers)

	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.OrderID != "A1" || o.CustomerID != 1 {
		t.Errorf("order = %+v", o)
	}
	if o.Total != 25.0 {
		t.Errorf("Total = %v, want 25.0", o.Total)
	}
	if o.Date == nil || !o.Date.Equal(*records[0].Date) {
		t.Errorf("Date = %v, want first row's date", o.Date)
	}

	if len(details) != 2 {
		t.Fatalf("details = %d, want 2", len(details))
	}
	if details[0].SKU != "S1" || details[0].Qty != 1 || details[0].UnitPrice != 10.0 {
		t.Errorf("detail[0] = %+v", details[0])
	}
	if details[1].SKU != "S2" || details[1].Qty != 2 || details[1].UnitPrice != 15.0 {
		t.Errorf("detail[1] = %+v", details[1])
	}

	// Region backfilled from the group's first row.
	if customers[0].Region != "MAHARASHTRA" {
		t.Errorf("Region = %q, want MAHARASHTRA", customers[0].Region)
	}
}

func TestAggregateOrdersTotalMatchesDetailSum(t *testing.T) {
	records := []RawRecord{
		{OrderID: "A", SKU: "S1", Amount: 1.25},
		{OrderID: "B", SKU: "S2", Amount: 3.5},
		{OrderID: "A", SKU: "S3", Amount: 2.75},
		{OrderID: "B", SKU: "S1", Amount: 0},
	}
	customers := []Customer{{ID: 1}}
	assign := map[string]int64{"A": 1, "B": 1}

	orders, details := AggregateOrders(records, assign, customers)

	sums := map[string]float64{}
	for _, d := range details {
		sums[d.OrderID] += d.UnitPrice
	}
	for _, o := range orders {
		if o.Total != sums[o.OrderID] {
			t.Errorf("order %s Total = %v, details sum = %v", o.OrderID, o.Total, sums[o.OrderID])
		}
	}
}

func TestAggregateOrdersNullShipStateBecomesUnknown(t *testing.T) {
	records := []RawRecord{{OrderID: "A", SKU: "S1", ShipState: ""}}
	customers := []Customer{{ID: 1, Region: "North"}}

	AggregateOrders(records, map[string]int64{"A": 1}, customers)

	if customers[0].Region != "Unknown" {
		t.Errorf("Region = %q, want Unknown", customers[0].Region)
	}
}

func TestAggregateOrdersLastGroupWinsRegion(t *testing.T) {
	// Two orders mapped to the same customer; the later-processed group's
	// ship-state is the one that sticks.
	records := []RawRecord{
		{OrderID: "A", SKU: "S1", ShipState: "KERALA"},
		{OrderID: "B", SKU: "S2", ShipState: "PUNJAB"},
	}
	customers := []Customer{{ID: 1, Region: "East"}}
	assign := map[string]int64{"A": 1, "B": 1}

	AggregateOrders(records, assign, customers)

	if customers[0].Region != "PUNJAB" {
		t.Errorf("Region = %q, want PUNJAB (last group)", customers[0].Region)
	}
}

func TestAggregateOrdersGroupOrderIsFirstAppearance(t *testing.T) {
	records := []RawRecord{
		{OrderID: "Z", SKU: "S1"},
		{OrderID: "A", SKU: "S2"},
		{OrderID: "Z", SKU: "S3"},
	}
	customers := []Customer{{ID: 1}}
	orders, _ := AggregateOrders(records, map[string]int64{"Z": 1, "A": 1}, customers)

	if len(orders) != 2 || orders[0].OrderID != "Z" || orders[1].OrderID != "A" {
		t.Errorf("group order = %v", orders)
	}
}

func TestAggregateOrdersZeroAmountGroupStillEmitted(t *testing.T) {
	records := []RawRecord{{OrderID: "A", SKU: "S1", Amount: 0, Date: nil}}
	customers := []Customer{{ID: 1}}

	orders, details := AggregateOrders(records, map[string]int64{"A": 1}, customers)

	if len(orders) != 1 || len(details) != 1 {
		t.Fatalf("orders=%d details=%d, want 1/1", len(orders), len(details))
	}
	if orders[0].Total != 0 || orders[0].Date != nil {
		t.Errorf("order = %+v, want zero total and nil date", orders[0])
	}
}
