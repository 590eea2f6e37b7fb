// Package service is the single mutation surface for the application. It
// owns the in-memory snapshot of every collection for the current session,
// writes through to the local store, and records a sync intent for each
// mutation.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nexuserp/backend/internal/domain"
	"nexuserp/backend/internal/localstore"
	"nexuserp/backend/internal/syncer"
	"nexuserp/backend/internal/xid"
)

var (
	ErrInvalidEntity = errors.New("invalid entity")
	ErrNotFound      = localstore.ErrNotFound
)

type Service struct {
	db     *localstore.DB
	driver *syncer.Driver
	log    zerolog.Logger

	mu                sync.RWMutex
	products          []domain.Product
	customers         []domain.Customer
	suppliers         []domain.Supplier
	categories        []domain.Category
	expenseCategories []domain.ExpenseCategory
	expenses          []domain.Expense
	purchaseOrders    []domain.PurchaseOrder

	receiveLocks keyedMutex
}

// New wires the facade. driver may be nil (tests, offline-only tools); sync
// triggering is then skipped.
func New(db *localstore.DB, driver *syncer.Driver, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		driver: driver,
		log:    logger.With().Str("component", "service").Logger(),
	}
}

// Load reads every collection from the local store and replaces the
// in-memory snapshot wholesale. Called at startup and on explicit refresh.
func (s *Service) Load(ctx context.Context) error {
	products, err := localstore.List[domain.Product](ctx, s.db, domain.CollectionProducts)
	if err != nil {
		return err
	}
	customers, err := localstore.List[domain.Customer](ctx, s.db, domain.CollectionCustomers)
	if err != nil {
		return err
	}
	suppliers, err := localstore.List[domain.Supplier](ctx, s.db, domain.CollectionSuppliers)
	if err != nil {
		return err
	}
	categories, err := localstore.List[domain.Category](ctx, s.db, domain.CollectionCategories)
	if err != nil {
		return err
	}
	expenseCategories, err := localstore.List[domain.ExpenseCategory](ctx, s.db, domain.CollectionExpenseCategories)
	if err != nil {
		return err
	}
	expenses, err := localstore.List[domain.Expense](ctx, s.db, domain.CollectionExpenses)
	if err != nil {
		return err
	}
	purchaseOrders, err := localstore.List[domain.PurchaseOrder](ctx, s.db, domain.CollectionPurchaseOrders)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.products = products
	s.customers = customers
	s.suppliers = suppliers
	s.categories = categories
	s.expenseCategories = expenseCategories
	s.expenses = expenses
	s.purchaseOrders = purchaseOrders
	s.mu.Unlock()

	s.log.Info().
		Int("products", len(products)).
		Int("customers", len(customers)).
		Int("purchase_orders", len(purchaseOrders)).
		Msg("snapshot loaded")
	return nil
}

// Refresh is Load under the name the presentation layer uses.
func (s *Service) Refresh(ctx context.Context) error { return s.Load(ctx) }

func (s *Service) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

func (s *Service) Customers() []domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Customer(nil), s.customers...)
}

func (s *Service) Suppliers() []domain.Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Supplier(nil), s.suppliers...)
}

func (s *Service) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

func (s *Service) ExpenseCategories() []domain.ExpenseCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ExpenseCategory(nil), s.expenseCategories...)
}

func (s *Service) Expenses() []domain.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Expense(nil), s.expenses...)
}

func (s *Service) PurchaseOrders() []domain.PurchaseOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.PurchaseOrder(nil), s.purchaseOrders...)
}

// mutate runs the uniform write-through sequence for a single entity: the
// durable write and its sync intent commit atomically in the local store,
// then the matching optimistic transform is applied to the snapshot, then a
// drain is triggered if we are online. A storage failure aborts before the
// snapshot or queue is touched.
func mutate[T any](s *Service, ctx context.Context, collection string, typ domain.MutationType, id string, item T, list *[]T, idOf func(T) string) error {
	mut := localstore.Mutation{Collection: collection, Type: typ, ID: id}
	if typ != domain.MutationDelete {
		mut.Record = item
	}
	if _, err := s.db.ApplyMutations(ctx, []localstore.Mutation{mut}, true); err != nil {
		return err
	}

	s.mu.Lock()
	*list = applyToList(*list, typ, id, item, idOf)
	s.mu.Unlock()

	s.requestSync()
	return nil
}

// applyToList is the single optimistic reducer: append for create,
// replace-by-id for update, filter-by-id for delete.
func applyToList[T any](list []T, typ domain.MutationType, id string, item T, idOf func(T) string) []T {
	switch typ {
	case domain.MutationCreate:
		return append(list, item)
	case domain.MutationUpdate:
		out := make([]T, len(list))
		for i, existing := range list {
			if idOf(existing) == id {
				out[i] = item
			} else {
				out[i] = existing
			}
		}
		return out
	case domain.MutationDelete:
		out := make([]T, 0, len(list))
		for _, existing := range list {
			if idOf(existing) != id {
				out = append(out, existing)
			}
		}
		return out
	}
	return list
}

func (s *Service) requestSync() {
	if s.driver == nil || !s.driver.Online() {
		return
	}
	go func() {
		if err := s.driver.Drain(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("post-mutation drain halted")
		}
	}()
}

func findByID[T any](list []T, id string, idOf func(T) string) (T, bool) {
	for _, item := range list {
		if idOf(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func productID(p domain.Product) string { return p.ID }

func customerID(c domain.Customer) string { return c.ID }

func supplierID(sp domain.Supplier) string { return sp.ID }

func categoryID(c domain.Category) string { return c.ID }

func expenseCategoryID(c domain.ExpenseCategory) string { return c.ID }

func expenseID(e domain.Expense) string { return e.ID }

func purchaseOrderID(po domain.PurchaseOrder) string { return po.ID }

// --- Products ---

func (s *Service) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	if p.Name == "" || p.SKU == "" || p.Price < 0 || p.Cost < 0 || p.Stock < 0 {
		return domain.Product{}, ErrInvalidEntity
	}
	if p.ID == "" {
		p.ID = xid.New("prod")
	}
	p.Status = domain.StockStatusFor(p.Stock)

	if err := mutate(s, ctx, domain.CollectionProducts, domain.MutationCreate, p.ID, p, &s.products, productID); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" || p.Price < 0 || p.Cost < 0 || p.Stock < 0 {
		return domain.Product{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.products, p.ID, productID)
	s.mu.RUnlock()
	if !exists {
		return domain.Product{}, ErrNotFound
	}
	p.Status = domain.StockStatusFor(p.Stock)

	if err := mutate(s, ctx, domain.CollectionProducts, domain.MutationUpdate, p.ID, p, &s.products, productID); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionProducts, domain.MutationDelete, id, domain.Product{}, &s.products, productID)
}

// --- Customers ---

func (s *Service) AddCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" || c.Points < 0 {
		return domain.Customer{}, ErrInvalidEntity
	}
	if c.ID == "" {
		c.ID = xid.New("cust")
	}
	if err := mutate(s, ctx, domain.CollectionCustomers, domain.MutationCreate, c.ID, c, &s.customers, customerID); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" || c.Points < 0 {
		return domain.Customer{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.customers, c.ID, customerID)
	s.mu.RUnlock()
	if !exists {
		return domain.Customer{}, ErrNotFound
	}
	if err := mutate(s, ctx, domain.CollectionCustomers, domain.MutationUpdate, c.ID, c, &s.customers, customerID); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionCustomers, domain.MutationDelete, id, domain.Customer{}, &s.customers, customerID)
}

// --- Suppliers ---

func (s *Service) AddSupplier(ctx context.Context, sp domain.Supplier) (domain.Supplier, error) {
	sp.Name = strings.TrimSpace(sp.Name)
	if sp.Name == "" {
		return domain.Supplier{}, ErrInvalidEntity
	}
	if sp.Status == "" {
		sp.Status = domain.SupplierStatusActive
	}
	if sp.Status != domain.SupplierStatusActive && sp.Status != domain.SupplierStatusInactive {
		return domain.Supplier{}, ErrInvalidEntity
	}
	if sp.ID == "" {
		sp.ID = xid.New("sup")
	}
	if err := mutate(s, ctx, domain.CollectionSuppliers, domain.MutationCreate, sp.ID, sp, &s.suppliers, supplierID); err != nil {
		return domain.Supplier{}, err
	}
	return sp, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, sp domain.Supplier) (domain.Supplier, error) {
	sp.Name = strings.TrimSpace(sp.Name)
	if sp.ID == "" || sp.Name == "" {
		return domain.Supplier{}, ErrInvalidEntity
	}
	if sp.Status != domain.SupplierStatusActive && sp.Status != domain.SupplierStatusInactive {
		return domain.Supplier{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.suppliers, sp.ID, supplierID)
	s.mu.RUnlock()
	if !exists {
		return domain.Supplier{}, ErrNotFound
	}
	if err := mutate(s, ctx, domain.CollectionSuppliers, domain.MutationUpdate, sp.ID, sp, &s.suppliers, supplierID); err != nil {
		return domain.Supplier{}, err
	}
	return sp, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionSuppliers, domain.MutationDelete, id, domain.Supplier{}, &s.suppliers, supplierID)
}

// --- Categories ---

func (s *Service) AddCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Category{}, ErrInvalidEntity
	}
	if c.ID == "" {
		c.ID = xid.New("cat")
	}
	if err := mutate(s, ctx, domain.CollectionCategories, domain.MutationCreate, c.ID, c, &s.categories, categoryID); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" {
		return domain.Category{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.categories, c.ID, categoryID)
	s.mu.RUnlock()
	if !exists {
		return domain.Category{}, ErrNotFound
	}
	if err := mutate(s, ctx, domain.CollectionCategories, domain.MutationUpdate, c.ID, c, &s.categories, categoryID); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionCategories, domain.MutationDelete, id, domain.Category{}, &s.categories, categoryID)
}

// --- Expense categories ---

func (s *Service) AddExpenseCategory(ctx context.Context, c domain.ExpenseCategory) (domain.ExpenseCategory, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.ExpenseCategory{}, ErrInvalidEntity
	}
	if c.ID == "" {
		c.ID = xid.New("excat")
	}
	if err := mutate(s, ctx, domain.CollectionExpenseCategories, domain.MutationCreate, c.ID, c, &s.expenseCategories, expenseCategoryID); err != nil {
		return domain.ExpenseCategory{}, err
	}
	return c, nil
}

func (s *Service) UpdateExpenseCategory(ctx context.Context, c domain.ExpenseCategory) (domain.ExpenseCategory, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" || c.Name == "" {
		return domain.ExpenseCategory{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.expenseCategories, c.ID, expenseCategoryID)
	s.mu.RUnlock()
	if !exists {
		return domain.ExpenseCategory{}, ErrNotFound
	}
	if err := mutate(s, ctx, domain.CollectionExpenseCategories, domain.MutationUpdate, c.ID, c, &s.expenseCategories, expenseCategoryID); err != nil {
		return domain.ExpenseCategory{}, err
	}
	return c, nil
}

func (s *Service) DeleteExpenseCategory(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionExpenseCategories, domain.MutationDelete, id, domain.ExpenseCategory{}, &s.expenseCategories, expenseCategoryID)
}

// --- Expenses ---

func (s *Service) AddExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if e.Description == "" || e.Amount < 0 {
		return domain.Expense{}, ErrInvalidEntity
	}
	if e.Status == "" {
		e.Status = domain.ExpenseStatusPending
	}
	if e.Status != domain.ExpenseStatusPaid && e.Status != domain.ExpenseStatusPending && e.Status != domain.ExpenseStatusOverdue {
		return domain.Expense{}, ErrInvalidEntity
	}
	if e.Date == "" {
		e.Date = time.Now().UTC().Format("2006-01-02")
	}
	if e.ID == "" {
		e.ID = xid.New("exp")
	}
	if err := mutate(s, ctx, domain.CollectionExpenses, domain.MutationCreate, e.ID, e, &s.expenses, expenseID); err != nil {
		return domain.Expense{}, err
	}
	return e, nil
}

func (s *Service) UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	e.Description = strings.TrimSpace(e.Description)
	if e.ID == "" || e.Description == "" || e.Amount < 0 {
		return domain.Expense{}, ErrInvalidEntity
	}
	if e.Status != domain.ExpenseStatusPaid && e.Status != domain.ExpenseStatusPending && e.Status != domain.ExpenseStatusOverdue {
		return domain.Expense{}, ErrInvalidEntity
	}
	s.mu.RLock()
	_, exists := findByID(s.expenses, e.ID, expenseID)
	s.mu.RUnlock()
	if !exists {
		return domain.Expense{}, ErrNotFound
	}
	if err := mutate(s, ctx, domain.CollectionExpenses, domain.MutationUpdate, e.ID, e, &s.expenses, expenseID); err != nil {
		return domain.Expense{}, err
	}
	return e, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	return mutate(s, ctx, domain.CollectionExpenses, domain.MutationDelete, id, domain.Expense{}, &s.expenses, expenseID)
}

// --- Purchase orders ---

func (s *Service) AddPurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	po.SupplierName = strings.TrimSpace(po.SupplierName)
	if po.SupplierName == "" || len(po.Items) == 0 {
		return domain.PurchaseOrder{}, ErrInvalidEntity
	}
	for _, item := range po.Items {
		if item.ProductID == "" || item.Quantity < 1 || item.Price < 0 {
			return domain.PurchaseOrder{}, ErrInvalidEntity
		}
	}
	if po.Status == "" {
		po.Status = domain.PurchaseOrderStatusDraft
	}
	if domain.PurchaseOrderStatusRank(po.Status) == 0 {
		return domain.PurchaseOrder{}, ErrInvalidEntity
	}
	if po.Date == "" {
		po.Date = time.Now().UTC().Format("2006-01-02")
	}
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	// Total is fixed at creation; later item edits do not recompute it.
	po.Total = po.ComputedTotal()

	if err := mutate(s, ctx, domain.CollectionPurchaseOrders, domain.MutationCreate, po.ID, po, &s.purchaseOrders, purchaseOrderID); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

func (s *Service) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	po.SupplierName = strings.TrimSpace(po.SupplierName)
	if po.ID == "" || po.SupplierName == "" {
		return domain.PurchaseOrder{}, ErrInvalidEntity
	}
	if domain.PurchaseOrderStatusRank(po.Status) == 0 {
		return domain.PurchaseOrder{}, ErrInvalidEntity
	}

	s.mu.RLock()
	existing, exists := findByID(s.purchaseOrders, po.ID, purchaseOrderID)
	s.mu.RUnlock()
	if !exists {
		return domain.PurchaseOrder{}, ErrNotFound
	}
	// The PO lifecycle only moves forward: Draft -> Ordered -> Received.
	if domain.PurchaseOrderStatusRank(po.Status) < domain.PurchaseOrderStatusRank(existing.Status) {
		return domain.PurchaseOrder{}, ErrInvalidEntity
	}

	if err := mutate(s, ctx, domain.CollectionPurchaseOrders, domain.MutationUpdate, po.ID, po, &s.purchaseOrders, purchaseOrderID); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return po, nil
}

// ReceivePurchaseOrder marks the order received and restocks every line
// item's product. The new PO state and all product states are computed from
// the snapshot first, then committed in one local-store transaction, so a
// failure leaves nothing half-applied. Calls for the same order are
// serialized; a second receive is a no-op.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}
	unlock := s.receiveLocks.lock(id)
	defer unlock()

	s.mu.RLock()
	po, ok := findByID(s.purchaseOrders, id, purchaseOrderID)
	if !ok || po.Status == domain.PurchaseOrderStatusReceived {
		s.mu.RUnlock()
		return nil
	}

	po.Status = domain.PurchaseOrderStatusReceived

	// Accumulate per product so duplicate line items for the same product
	// restock once with the summed quantity.
	updatedByID := make(map[string]domain.Product, len(po.Items))
	order := make([]string, 0, len(po.Items))
	for _, item := range po.Items {
		product, found := updatedByID[item.ProductID]
		if !found {
			product, found = findByID(s.products, item.ProductID, productID)
			if !found {
				// Line items may reference products deleted since the order
				// was placed; those lines are skipped.
				continue
			}
			order = append(order, item.ProductID)
		}
		product.Stock += item.Quantity
		product.Status = domain.StockStatusFor(product.Stock)
		updatedByID[item.ProductID] = product
	}
	s.mu.RUnlock()

	muts := make([]localstore.Mutation, 0, len(order)+1)
	muts = append(muts, localstore.Mutation{
		Collection: domain.CollectionPurchaseOrders,
		Type:       domain.MutationUpdate,
		ID:         po.ID,
		Record:     po,
	})
	for _, pid := range order {
		muts = append(muts, localstore.Mutation{
			Collection: domain.CollectionProducts,
			Type:       domain.MutationUpdate,
			ID:         pid,
			Record:     updatedByID[pid],
		})
	}

	if _, err := s.db.ApplyMutations(ctx, muts, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.purchaseOrders = applyToList(s.purchaseOrders, domain.MutationUpdate, po.ID, po, purchaseOrderID)
	for _, pid := range order {
		s.products = applyToList(s.products, domain.MutationUpdate, pid, updatedByID[pid], productID)
	}
	s.mu.Unlock()

	s.log.Info().Str("purchase_order", po.ID).Int("restocked_products", len(order)).
		Msg("purchase order received")
	s.requestSync()
	return nil
}

// keyedMutex serializes operations per key (one lock per purchase order id).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entryLock)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &entryLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
