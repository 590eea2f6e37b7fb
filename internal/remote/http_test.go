package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"nexuserp/backend/internal/domain"
)

func task(typ domain.MutationType, collection string, payload string) domain.SyncTask {
	return domain.SyncTask{
		ID:         1,
		Type:       typ,
		Collection: collection,
		Payload:    json.RawMessage(payload),
	}
}

func TestHTTPStoreRequestMapping(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "")
	ctx := context.Background()

	if err := store.Apply(ctx, task(domain.MutationCreate, "products", `{"id":"p1","name":"A"}`)); err != nil {
		t.Fatalf("Apply create: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/products" || !strings.Contains(gotBody, `"p1"`) {
		t.Fatalf("create request = %s %s body %q", gotMethod, gotPath, gotBody)
	}

	if err := store.Apply(ctx, task(domain.MutationUpdate, "customers", `{"id":"c7"}`)); err != nil {
		t.Fatalf("Apply update: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/customers/c7" {
		t.Fatalf("update request = %s %s", gotMethod, gotPath)
	}

	if err := store.Apply(ctx, task(domain.MutationDelete, "expenses", `{"id":"e3"}`)); err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/expenses/e3" || gotBody != "" {
		t.Fatalf("delete request = %s %s body %q", gotMethod, gotPath, gotBody)
	}
}

func TestHTTPStoreBearerToken(t *testing.T) {
	secret := "shared-secret"
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, secret)
	if err := store.Apply(context.Background(), task(domain.MutationCreate, "products", `{"id":"p1"}`)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	raw, ok := strings.CutPrefix(gotAuth, "Bearer ")
	if !ok {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	parsed, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
}

func TestHTTPStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, "")
	err := store.Apply(context.Background(), task(domain.MutationCreate, "products", `{"id":"p1"}`))
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("error %T is not a SyncError", err)
	}
}

func TestHTTPStoreRejectsPayloadWithoutID(t *testing.T) {
	store := NewHTTPStore("http://unused.invalid", "")
	err := store.Apply(context.Background(), task(domain.MutationUpdate, "products", `{"name":"no id"}`))
	if err == nil {
		t.Fatal("expected error for payload without id")
	}
}
