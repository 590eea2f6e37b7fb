package localstore

import (
	"context"
	"encoding/json"

	bolt "go.etcd.io/bbolt"

	"nexuserp/backend/internal/domain"
)

// Seed populates empty collections from the fixed demo dataset, once.
//
// A seeded:<collection> marker in the meta bucket records that the collection
// has been through this check, so a collection the user later empties by hand
// is never re-seeded. A collection found non-empty is marked without writing
// anything, since it was evidently populated some other way.
func (db *DB) Seed(ctx context.Context) error {
	for _, set := range seedSets() {
		if err := ctx.Err(); err != nil {
			return storageErr("seed", set.collection, err)
		}
		if len(set.records) == 0 {
			continue
		}

		err := db.bolt.Update(func(tx *bolt.Tx) error {
			meta := tx.Bucket([]byte(metaBucket))
			marker := []byte("seeded:" + set.collection)
			if meta.Get(marker) != nil {
				return nil
			}

			b := tx.Bucket([]byte(set.collection))
			if b.Stats().KeyN == 0 {
				for _, record := range set.records {
					raw, err := json.Marshal(record.value)
					if err != nil {
						return err
					}
					if err := b.Put([]byte(record.id), raw); err != nil {
						return err
					}
				}
			}
			return meta.Put(marker, []byte("1"))
		})
		if err != nil {
			return storageErr("seed", set.collection, err)
		}
	}
	return nil
}

type seedRecord struct {
	id    string
	value any
}

type seedSet struct {
	collection string
	records    []seedRecord
}

func seedSets() []seedSet {
	sets := []seedSet{
		{collection: domain.CollectionProducts},
		{collection: domain.CollectionCustomers},
		{collection: domain.CollectionSuppliers},
		{collection: domain.CollectionExpenses},
		{collection: domain.CollectionCategories},
		{collection: domain.CollectionExpenseCategories},
		{collection: domain.CollectionPurchaseOrders},
	}

	for _, p := range SeedProducts() {
		sets[0].records = append(sets[0].records, seedRecord{p.ID, p})
	}
	for _, c := range SeedCustomers() {
		sets[1].records = append(sets[1].records, seedRecord{c.ID, c})
	}
	for _, s := range SeedSuppliers() {
		sets[2].records = append(sets[2].records, seedRecord{s.ID, s})
	}
	for _, e := range SeedExpenses() {
		sets[3].records = append(sets[3].records, seedRecord{e.ID, e})
	}
	for _, c := range SeedCategories() {
		sets[4].records = append(sets[4].records, seedRecord{c.ID, c})
	}
	for _, c := range SeedExpenseCategories() {
		sets[5].records = append(sets[5].records, seedRecord{c.ID, c})
	}
	for _, po := range SeedPurchaseOrders() {
		sets[6].records = append(sets[6].records, seedRecord{po.ID, po})
	}
	return sets
}

// SeedProducts returns the demo catalog. Statuses follow the stock
// thresholds, same as any runtime write would produce.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "Wireless Ergonomic Mouse", SKU: "WEM-001", Category: "Electronics", Price: 45.99, Cost: 25.00, Stock: 120, Warehouse: "Main Warehouse A", Status: domain.ProductStatusActive, Image: "https://images.unsplash.com/photo-1527864550417-7fd91fc51a46?w=300&h=300&fit=crop"},
		{ID: "2", Name: "Mechanical Keyboard RGB", SKU: "MK-RGB-02", Category: "Electronics", Price: 129.99, Cost: 80.00, Stock: 45, Warehouse: "Main Warehouse A", Status: domain.ProductStatusActive, Image: "https://images.unsplash.com/photo-1511467687858-23d96c32e4ae?w=300&h=300&fit=crop"},
		{ID: "3", Name: "Premium Cotton T-Shirt", SKU: "PCT-BLK-L", Category: "Apparel", Price: 24.99, Cost: 8.00, Stock: 500, Warehouse: "Warehouse B", Status: domain.ProductStatusActive, Image: "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=300&h=300&fit=crop"},
		{ID: "4", Name: "Organic Coffee Beans", SKU: "GRO-COF-01", Category: "Groceries", Price: 18.50, Cost: 10.00, Stock: 12, Warehouse: "Main Warehouse A", Status: domain.ProductStatusActive, Image: "https://images.unsplash.com/photo-1559056199-641a0ac8b55e?w=300&h=300&fit=crop"},
		{ID: "5", Name: "Leather Wallet", SKU: "ACC-WAL-01", Category: "Accessories", Price: 55.00, Cost: 20.00, Stock: 0, Warehouse: "Warehouse C", Status: domain.ProductStatusOutOfStock, Image: "https://images.unsplash.com/photo-1627123424574-181ce90b594f?w=300&h=300&fit=crop"},
		{ID: "6", Name: "4K Monitor 27\"", SKU: "MON-4K-27", Category: "Electronics", Price: 349.99, Cost: 250.00, Stock: 8, Warehouse: "Main Warehouse A", Status: domain.ProductStatusLowStock, Image: "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf?w=300&h=300&fit=crop"},
		{ID: "7", Name: "Running Shoes", SKU: "SHOE-RUN-01", Category: "Footwear", Price: 89.99, Cost: 40.00, Stock: 60, Warehouse: "Warehouse B", Status: domain.ProductStatusActive, Image: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=300&h=300&fit=crop"},
	}
}

func SeedCustomers() []domain.Customer {
	return []domain.Customer{
		{ID: "1", Name: "Jane Cooper", Email: "jane@example.com", Phone: "(555) 123-4567", Points: 1250},
		{ID: "2", Name: "Wade Warren", Email: "wade@example.com", Phone: "(555) 987-6543", Points: 450},
		{ID: "3", Name: "Esther Howard", Email: "esther@example.com", Phone: "(555) 456-7890", Points: 890},
	}
}

func SeedSuppliers() []domain.Supplier {
	return []domain.Supplier{
		{ID: "1", Name: "Global Tech Imports", Contact: "Sarah Johnson", Email: "s.johnson@gti.com", Status: domain.SupplierStatusActive},
		{ID: "2", Name: "Fabric & Co.", Contact: "Mike Smith", Email: "orders@fabric.co", Status: domain.SupplierStatusActive},
	}
}

func SeedExpenses() []domain.Expense {
	return []domain.Expense{
		{ID: "1", Description: "Shipping Fees - Port to Warehouse", Category: "Logistics", Amount: 1250.00, Date: "2023-10-26", Status: domain.ExpenseStatusPaid, Warehouse: "Main Warehouse A"},
		{ID: "2", Description: "Office Supplies - Printer Ink", Category: "Office Supplies", Amount: 89.99, Date: "2023-10-25", Status: domain.ExpenseStatusPaid, Warehouse: "Head Office"},
		{ID: "3", Description: "Monthly Software Subscription", Category: "Software", Amount: 499.00, Date: "2023-10-24", Status: domain.ExpenseStatusPending, Warehouse: "Corporate"},
		{ID: "4", Description: "Warehouse Maintenance", Category: "Maintenance", Amount: 2300.50, Date: "2023-10-22", Status: domain.ExpenseStatusOverdue, Warehouse: "Warehouse B"},
	}
}

func SeedCategories() []domain.Category {
	return []domain.Category{
		{ID: "1", Name: "Electronics", Description: "Gadgets, devices and accessories", ProductCount: 125},
		{ID: "2", Name: "Apparel", Description: "Clothing, footwear and fashion items", ProductCount: 210},
		{ID: "3", Name: "Groceries", Description: "Daily consumables and food items", ProductCount: 85},
		{ID: "4", Name: "Furniture", Description: "Office and home furniture", ProductCount: 42},
	}
}

func SeedExpenseCategories() []domain.ExpenseCategory {
	return []domain.ExpenseCategory{
		{ID: "1", Name: "Logistics", Description: "Freight, shipping and customs"},
		{ID: "2", Name: "Office Supplies", Description: "Consumables for back office"},
		{ID: "3", Name: "Software", Description: "Licenses and subscriptions"},
		{ID: "4", Name: "Maintenance", Description: "Facility upkeep and repairs"},
	}
}

func SeedPurchaseOrders() []domain.PurchaseOrder {
	return []domain.PurchaseOrder{
		{
			ID: "PO-2023-001", SupplierName: "Global Tech Imports", Date: "2023-10-20", ExpectedDate: "2023-11-01",
			Total: 5400.00, Status: domain.PurchaseOrderStatusOrdered, Warehouse: "Main Warehouse A",
			Items: []domain.OrderItem{
				{ProductID: "6", Name: "4K Monitor 27\"", Quantity: 10, Price: 250.00},
				{ProductID: "2", Name: "Mechanical Keyboard RGB", Quantity: 20, Price: 80.00},
				{ProductID: "1", Name: "Wireless Ergonomic Mouse", Quantity: 50, Price: 26.00},
			},
		},
		{
			ID: "PO-2023-002", SupplierName: "Fabric & Co.", Date: "2023-10-22", ExpectedDate: "2023-10-29",
			Total: 1250.00, Status: domain.PurchaseOrderStatusReceived, Warehouse: "Warehouse B",
			Items: []domain.OrderItem{
				{ProductID: "3", Name: "Premium Cotton T-Shirt", Quantity: 150, Price: 8.00},
				{ProductID: "7", Name: "Running Shoes", Quantity: 10, Price: 5.00},
			},
		},
		{
			ID: "PO-2023-003", SupplierName: "Industrial Hardware Co.", Date: "2023-10-25", ExpectedDate: "2023-11-05",
			Total: 3200.00, Status: domain.PurchaseOrderStatusDraft, Warehouse: "Warehouse C",
			Items: []domain.OrderItem{
				{ProductID: "5", Name: "Leather Wallet", Quantity: 160, Price: 20.00},
			},
		},
	}
}
