package domain

import "encoding/json"

// Collection names as persisted in the local store. These double as the
// collection identifiers carried on sync tasks, so the remote side sees the
// same naming.
const (
	CollectionProducts          = "products"
	CollectionCustomers         = "customers"
	CollectionSuppliers         = "suppliers"
	CollectionExpenses          = "expenses"
	CollectionCategories        = "categories"
	CollectionExpenseCategories = "expense_categories"
	CollectionPurchaseOrders    = "purchase_orders"
	CollectionSyncQueue         = "sync_queue"
)

// EntityCollections lists every entity collection, excluding the sync queue.
func EntityCollections() []string {
	return []string{
		CollectionProducts,
		CollectionCustomers,
		CollectionSuppliers,
		CollectionExpenses,
		CollectionCategories,
		CollectionExpenseCategories,
		CollectionPurchaseOrders,
	}
}

const (
	ProductStatusActive     = "Active"
	ProductStatusLowStock   = "Low Stock"
	ProductStatusOutOfStock = "Out of Stock"
)

// lowStockThreshold is the stock level at or below which a product with any
// stock left is reported as low.
const lowStockThreshold = 10

// StockStatusFor derives the product status from a stock count. Every write
// path that changes stock must pass through this so status never drifts.
func StockStatusFor(stock int) string {
	switch {
	case stock <= 0:
		return ProductStatusOutOfStock
	case stock <= lowStockThreshold:
		return ProductStatusLowStock
	default:
		return ProductStatusActive
	}
}

type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Stock       int     `json:"stock"`
	Warehouse   string  `json:"warehouse"`
	Status      string  `json:"status"`
	Image       string  `json:"image"`
	Description string  `json:"description,omitempty"`
}

type Customer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Points int    `json:"points"`
}

const (
	SupplierStatusActive   = "Active"
	SupplierStatusInactive = "Inactive"
)

type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Status  string `json:"status"`
}

// Category carries a denormalized productCount that is not maintained by any
// mutation path; it reflects whatever was last written.
type Category struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ProductCount int    `json:"productCount"`
}

type ExpenseCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

const (
	ExpenseStatusPaid    = "Paid"
	ExpenseStatusPending = "Pending"
	ExpenseStatusOverdue = "Overdue"
)

type Expense struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Status      string  `json:"status"`
	Warehouse   string  `json:"warehouse"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

const (
	PurchaseOrderStatusDraft    = "Draft"
	PurchaseOrderStatusOrdered  = "Ordered"
	PurchaseOrderStatusReceived = "Received"
)

// PurchaseOrder.Total is computed from the items at creation time and not
// recomputed afterwards; SupplierName is denormalized, not a foreign key.
type PurchaseOrder struct {
	ID           string      `json:"id"`
	SupplierName string      `json:"supplierName"`
	Date         string      `json:"date"`
	ExpectedDate string      `json:"expectedDate"`
	Total        float64     `json:"total"`
	Status       string      `json:"status"`
	Warehouse    string      `json:"warehouse"`
	Items        []OrderItem `json:"items"`
}

// ComputedTotal sums quantity times price over the order items.
func (po PurchaseOrder) ComputedTotal() float64 {
	total := 0.0
	for _, item := range po.Items {
		total += float64(item.Quantity) * item.Price
	}
	return total
}

// PurchaseOrderStatusRank orders the one-directional PO lifecycle. Unknown
// statuses rank below Draft so they can always be corrected forward.
func PurchaseOrderStatusRank(status string) int {
	switch status {
	case PurchaseOrderStatusDraft:
		return 1
	case PurchaseOrderStatusOrdered:
		return 2
	case PurchaseOrderStatusReceived:
		return 3
	default:
		return 0
	}
}

type MutationType string

const (
	MutationCreate MutationType = "CREATE"
	MutationUpdate MutationType = "UPDATE"
	MutationDelete MutationType = "DELETE"
)

// SyncTask is one durable mutation intent awaiting replay against the remote
// store. Payload holds the full entity for creates and updates, and {"id"}
// for deletes. Attempts counts drain passes that failed on this task.
type SyncTask struct {
	ID         uint64          `json:"id"`
	Type       MutationType    `json:"type"`
	Collection string          `json:"collection"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  int64           `json:"timestamp"`
	Attempts   int             `json:"attempts,omitempty"`
}

// PayloadID extracts the entity id from the task payload.
func (t SyncTask) PayloadID() string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(t.Payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}
