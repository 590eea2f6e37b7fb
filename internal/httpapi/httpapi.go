// Package httpapi is the thin JSON surface over the domain state facade.
// Presentation clients read snapshots and call mutation endpoints; all
// persistence and sync behavior lives below the facade.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"

	"nexuserp/backend/internal/domain"
	"nexuserp/backend/internal/localstore"
	"nexuserp/backend/internal/service"
	"nexuserp/backend/internal/syncer"
)

type API struct {
	svc           *service.Service
	driver        *syncer.Driver
	bus           evbus.Bus
	allowedOrigin string
	log           zerolog.Logger
}

func New(svc *service.Service, driver *syncer.Driver, bus evbus.Bus, allowedOrigin string, logger zerolog.Logger) *API {
	return &API{
		svc:           svc,
		driver:        driver,
		bus:           bus,
		allowedOrigin: allowedOrigin,
		log:           logger.With().Str("component", "httpapi").Logger(),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/products/", a.handleProductByID)
	mux.HandleFunc("/api/v1/customers", a.handleCustomers)
	mux.HandleFunc("/api/v1/customers/", a.handleCustomerByID)
	mux.HandleFunc("/api/v1/suppliers", a.handleSuppliers)
	mux.HandleFunc("/api/v1/suppliers/", a.handleSupplierByID)
	mux.HandleFunc("/api/v1/categories", a.handleCategories)
	mux.HandleFunc("/api/v1/categories/", a.handleCategoryByID)
	mux.HandleFunc("/api/v1/expense-categories", a.handleExpenseCategories)
	mux.HandleFunc("/api/v1/expense-categories/", a.handleExpenseCategoryByID)
	mux.HandleFunc("/api/v1/expenses", a.handleExpenses)
	mux.HandleFunc("/api/v1/expenses/", a.handleExpenseByID)
	mux.HandleFunc("/api/v1/purchase-orders", a.handlePurchaseOrders)
	mux.HandleFunc("/api/v1/purchase-orders/", a.handlePurchaseOrderActions)

	mux.HandleFunc("/api/v1/sync/status", a.handleSyncStatus)
	mux.HandleFunc("/api/v1/sync/trigger", a.handleSyncTrigger)
	mux.HandleFunc("/api/v1/connectivity", a.handleConnectivity)
	mux.HandleFunc("/api/v1/refresh", a.handleRefresh)

	return a.cors(mux)
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- Products ---

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"products": a.svc.Products()})
	case http.MethodPost:
		var p domain.Product
		if !decode(w, r, &p) {
			return
		}
		created, err := a.svc.AddProduct(r.Context(), p)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/products/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var p domain.Product
		if !decode(w, r, &p) {
			return
		}
		p.ID = id
		updated, err := a.svc.UpdateProduct(r.Context(), p)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteProduct(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Customers ---

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"customers": a.svc.Customers()})
	case http.MethodPost:
		var c domain.Customer
		if !decode(w, r, &c) {
			return
		}
		created, err := a.svc.AddCustomer(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleCustomerByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/customers/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var c domain.Customer
		if !decode(w, r, &c) {
			return
		}
		c.ID = id
		updated, err := a.svc.UpdateCustomer(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteCustomer(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Suppliers ---

func (a *API) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"suppliers": a.svc.Suppliers()})
	case http.MethodPost:
		var sp domain.Supplier
		if !decode(w, r, &sp) {
			return
		}
		created, err := a.svc.AddSupplier(r.Context(), sp)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleSupplierByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/suppliers/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var sp domain.Supplier
		if !decode(w, r, &sp) {
			return
		}
		sp.ID = id
		updated, err := a.svc.UpdateSupplier(r.Context(), sp)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteSupplier(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Categories ---

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"categories": a.svc.Categories()})
	case http.MethodPost:
		var c domain.Category
		if !decode(w, r, &c) {
			return
		}
		created, err := a.svc.AddCategory(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/categories/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var c domain.Category
		if !decode(w, r, &c) {
			return
		}
		c.ID = id
		updated, err := a.svc.UpdateCategory(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteCategory(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Expense categories ---

func (a *API) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"expenseCategories": a.svc.ExpenseCategories()})
	case http.MethodPost:
		var c domain.ExpenseCategory
		if !decode(w, r, &c) {
			return
		}
		created, err := a.svc.AddExpenseCategory(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleExpenseCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/expense-categories/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var c domain.ExpenseCategory
		if !decode(w, r, &c) {
			return
		}
		c.ID = id
		updated, err := a.svc.UpdateExpenseCategory(r.Context(), c)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteExpenseCategory(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Expenses ---

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"expenses": a.svc.Expenses()})
	case http.MethodPost:
		var e domain.Expense
		if !decode(w, r, &e) {
			return
		}
		created, err := a.svc.AddExpense(r.Context(), e)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (a *API) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/api/v1/expenses/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var e domain.Expense
		if !decode(w, r, &e) {
			return
		}
		e.ID = id
		updated, err := a.svc.UpdateExpense(r.Context(), e)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.svc.DeleteExpense(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		methodNotAllowed(w)
	}
}

// --- Purchase orders ---

func (a *API) handlePurchaseOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"purchaseOrders": a.svc.PurchaseOrders()})
	case http.MethodPost:
		var po domain.PurchaseOrder
		if !decode(w, r, &po) {
			return
		}
		created, err := a.svc.AddPurchaseOrder(r.Context(), po)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

// handlePurchaseOrderActions serves /purchase-orders/{id} (PUT, DELETE is
// not offered: orders are immutable history once placed) and
// /purchase-orders/{id}/receive.
func (a *API) handlePurchaseOrderActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/purchase-orders/")
	if rest == "" {
		http.NotFound(w, r)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/receive"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if err := a.svc.ReceivePurchaseOrder(r.Context(), id); err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"received": id})
		return
	}

	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var po domain.PurchaseOrder
	if !decode(w, r, &po) {
		return
	}
	po.ID = rest
	updated, err := a.svc.UpdatePurchaseOrder(r.Context(), po)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Sync & connectivity ---

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	status, err := a.driver.Status(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := a.driver.Drain(r.Context()); err != nil {
		// A halted pass is not a client error; report it but keep 200 so
		// the UI can show "will retry" instead of an alert.
		writeJSON(w, http.StatusOK, map[string]any{"drained": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drained": true})
}

func (a *API) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Online bool `json:"online"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Online {
		a.bus.Publish(syncer.TopicOnline)
	} else {
		a.bus.Publish(syncer.TopicOffline)
	}
	writeJSON(w, http.StatusOK, map[string]any{"online": req.Online})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := a.svc.Refresh(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

// --- Helpers ---

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func pathID(path string, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	var storageErr *localstore.StorageError
	switch {
	case errors.Is(err, service.ErrInvalidEntity):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, localstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	case errors.As(err, &storageErr):
		a.log.Error().Err(err).Msg("storage failure")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "local storage unavailable"})
	default:
		a.log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}
