package domain

import (
	"encoding/json"
	"testing"
)

func TestStockStatusFor(t *testing.T) {
	cases := []struct {
		stock int
		want  string
	}{
		{-3, ProductStatusOutOfStock},
		{0, ProductStatusOutOfStock},
		{1, ProductStatusLowStock},
		{10, ProductStatusLowStock},
		{11, ProductStatusActive},
		{500, ProductStatusActive},
	}
	for _, tc := range cases {
		if got := StockStatusFor(tc.stock); got != tc.want {
			t.Errorf("StockStatusFor(%d) = %q, want %q", tc.stock, got, tc.want)
		}
	}
}

func TestComputedTotal(t *testing.T) {
	po := PurchaseOrder{
		Items: []OrderItem{
			{ProductID: "1", Quantity: 10, Price: 250.00},
			{ProductID: "2", Quantity: 20, Price: 80.00},
			{ProductID: "3", Quantity: 50, Price: 26.00},
		},
	}
	if got := po.ComputedTotal(); got != 5400.00 {
		t.Fatalf("ComputedTotal() = %v, want 5400", got)
	}

	empty := PurchaseOrder{}
	if got := empty.ComputedTotal(); got != 0 {
		t.Fatalf("ComputedTotal() on empty order = %v, want 0", got)
	}
}

func TestPurchaseOrderStatusRank(t *testing.T) {
	if PurchaseOrderStatusRank(PurchaseOrderStatusDraft) >= PurchaseOrderStatusRank(PurchaseOrderStatusOrdered) {
		t.Fatal("Draft should rank below Ordered")
	}
	if PurchaseOrderStatusRank(PurchaseOrderStatusOrdered) >= PurchaseOrderStatusRank(PurchaseOrderStatusReceived) {
		t.Fatal("Ordered should rank below Received")
	}
	if PurchaseOrderStatusRank("Cancelled") != 0 {
		t.Fatal("unknown status should rank 0")
	}
}

func TestSyncTaskPayloadID(t *testing.T) {
	task := SyncTask{Payload: json.RawMessage(`{"id":"prod-42","name":"thing"}`)}
	if got := task.PayloadID(); got != "prod-42" {
		t.Fatalf("PayloadID() = %q, want %q", got, "prod-42")
	}

	task = SyncTask{Payload: json.RawMessage(`not json`)}
	if got := task.PayloadID(); got != "" {
		t.Fatalf("PayloadID() on garbage = %q, want empty", got)
	}
}
