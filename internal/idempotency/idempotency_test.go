package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kerhoff/wishfund/pkg/logger"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if resp, err := s.Begin(ctx, "k", time.Minute); err != nil || resp != nil {
		t.Fatalf("first Begin() = %v, %v, want nil, nil", resp, err)
	}
	if _, err := s.Begin(ctx, "k", time.Minute); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second Begin() error = %v, want ErrInFlight", err)
	}

	if err := s.Complete(ctx, "k", Response{Status: 201, Body: []byte("ok")}, time.Minute); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	resp, err := s.Begin(ctx, "k", time.Minute)
	if err != nil || resp == nil || resp.Status != 201 || string(resp.Body) != "ok" {
		t.Fatalf("Begin() after Complete = %+v, %v", resp, err)
	}

	if err := s.Release(ctx, "k"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if resp, err := s.Begin(ctx, "k", time.Minute); err != nil || resp != nil {
		t.Fatalf("Begin() after Release = %v, %v, want fresh reservation", resp, err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Complete(ctx, "k", Response{Status: 201}, time.Minute)
	now = now.Add(2 * time.Minute)

	if resp, err := s.Begin(ctx, "k", time.Minute); err != nil || resp != nil {
		t.Fatalf("Begin() after expiry = %v, %v, want fresh reservation", resp, err)
	}
}

func newHandler(calls *int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	})
}

func TestMiddleware_ReplaysFirstResponse(t *testing.T) {
	var calls int32
	scope := func(r *http.Request) string { return r.Header.Get("X-Actor") }
	h := Middleware(NewMemoryStore(), time.Hour, scope, logger.Discard())(newHandler(&calls, http.StatusCreated))

	send := func(actor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/items/1/contribute", strings.NewReader(`{}`))
		req.Header.Set(HeaderKey, "abc")
		req.Header.Set("X-Actor", actor)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := send("u:1")
	second := send("u:1")
	other := send("u:2")

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("replay = %d %q, want %d %q", second.Code, second.Body.String(), first.Code, first.Body.String())
	}
	if second.Header().Get(HeaderReplayed) != "true" {
		t.Error("expected replay header on second response")
	}
	if other.Header().Get(HeaderReplayed) != "" {
		t.Error("a different actor must not share the key")
	}
}

func TestMiddleware_DoesNotCacheServerErrors(t *testing.T) {
	var calls int32
	h := Middleware(NewMemoryStore(), time.Hour, func(*http.Request) string { return "" }, logger.Discard())(newHandler(&calls, http.StatusInternalServerError))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderKey, "abc")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestMiddleware_PassThrough(t *testing.T) {
	var calls int32
	h := Middleware(NewMemoryStore(), time.Hour, func(*http.Request) string { return "" }, logger.Discard())(newHandler(&calls, http.StatusOK))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/x", nil),
		httptest.NewRequest(http.MethodGet, "/x", nil),
		httptest.NewRequest(http.MethodGet, "/x", nil),
	} {
		req.Header.Set("X-Ignored", "1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("handler calls = %d, want 3", calls)
	}
}

func TestMiddleware_ReleasesKeyWhenHandlerPanics(t *testing.T) {
	var calls int32
	panicking := true
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if panicking {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})
	h := middleware.Recoverer(Middleware(NewMemoryStore(), time.Hour, func(*http.Request) string { return "" }, logger.Discard())(next))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderKey, "abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusInternalServerError {
		t.Fatalf("panicking request status = %d, want 500", code)
	}
	panicking = false
	if code := send(); code != http.StatusCreated {
		t.Fatalf("retry status = %d, want 201", code)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}
