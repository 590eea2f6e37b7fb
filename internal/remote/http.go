package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nexuserp/backend/internal/domain"
)

// HTTPStore mirrors mutations against a REST backend:
//
//	CREATE -> POST   {base}/{collection}
//	UPDATE -> PUT    {base}/{collection}/{id}
//	DELETE -> DELETE {base}/{collection}/{id}
//
// When a shared secret is configured each request carries a short-lived
// HS256 bearer token.
type HTTPStore struct {
	baseURL    string
	authSecret string
	client     *http.Client
}

func NewHTTPStore(baseURL string, authSecret string) *HTTPStore {
	return &HTTPStore{
		baseURL:    baseURL,
		authSecret: authSecret,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPStore) Name() string { return "http" }

func (s *HTTPStore) Apply(ctx context.Context, task domain.SyncTask) error {
	method, url, body, err := s.requestFor(task)
	if err != nil {
		return syncErr(s.Name(), task, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return syncErr(s.Name(), task, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.authSecret != "" {
		token, err := s.mintToken()
		if err != nil {
			return syncErr(s.Name(), task, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return syncErr(s.Name(), task, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return syncErr(s.Name(), task, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (s *HTTPStore) requestFor(task domain.SyncTask) (method string, url string, body io.Reader, err error) {
	id := task.PayloadID()
	if id == "" {
		return "", "", nil, fmt.Errorf("payload has no id")
	}

	switch task.Type {
	case domain.MutationCreate:
		return http.MethodPost, s.baseURL + "/" + task.Collection, bytes.NewReader(task.Payload), nil
	case domain.MutationUpdate:
		return http.MethodPut, s.baseURL + "/" + task.Collection + "/" + id, bytes.NewReader(task.Payload), nil
	case domain.MutationDelete:
		return http.MethodDelete, s.baseURL + "/" + task.Collection + "/" + id, nil, nil
	default:
		return "", "", nil, fmt.Errorf("unknown mutation type %q", task.Type)
	}
}

func (s *HTTPStore) mintToken() (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss": "nexuserp-sync",
		"iat": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.authSecret))
}
