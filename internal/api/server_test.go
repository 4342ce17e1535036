package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/identity"
	"github.com/Kerhoff/wishfund/internal/idempotency"
	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/realtime"
	"github.com/Kerhoff/wishfund/internal/repository/memory"
	"github.com/Kerhoff/wishfund/internal/service"
	"github.com/Kerhoff/wishfund/pkg/logger"
)

type testEnv struct {
	store    *memory.Store
	resolver *identity.Resolver
	handler  http.Handler
	owner    models.User
	donor    models.User
	list     models.Wishlist
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()
	store := memory.New()
	hub := realtime.NewHub(log)
	svc := service.New(log, store.Users(), store.Wishlists(), store.Activity(), store.Ledger(), nil, hub)
	resolver := identity.NewResolver("test-secret")

	env := &testEnv{
		store:    store,
		resolver: resolver,
		handler:  NewServer(svc, resolver, hub, idempotency.NewMemoryStore(), time.Hour, log).Handler(),
	}
	env.owner = store.AddUser(models.User{Username: "olga", DisplayName: "Olga"})
	env.donor = store.AddUser(models.User{Username: "dima", DisplayName: "Dima"})
	env.list = store.AddWishlist(models.Wishlist{OwnerID: env.owner.ID, Title: "Birthday", Slug: "bday", IsPublic: true})
	return env
}

func (e *testEnv) item(title, target string) models.WishlistItem {
	return e.store.AddItem(models.WishlistItem{
		WishlistID:  e.list.ID,
		Title:       title,
		ProductURL:  "https://shop.example/" + title,
		TargetPrice: decimal.RequireFromString(target),
	})
}

func (e *testEnv) token(t *testing.T, userID int64) string {
	t.Helper()
	token, err := e.resolver.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func itemPath(id int64, suffix string) string {
	return "/api/items/" + strconv.FormatInt(id, 10) + suffix
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestContribute_AnonymousAndRegistered(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")

	rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), "", map[string]any{"amount": 300, "alias": "Ann"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("anonymous status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var res service.ContributionResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.AcceptedAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("AcceptedAmount = %s, want 300", res.AcceptedAmount)
	}

	rec = env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), env.token(t, env.donor.ID), map[string]any{"amount": 200}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("registered status = %d, body = %s", rec.Code, rec.Body.String())
	}

	contributions := env.store.Contributions(bike.ID)
	if len(contributions) != 2 {
		t.Fatalf("contributions = %d, want 2", len(contributions))
	}
	if got := contributions[1].Contributor; !got.IsRegistered() || got.UserID != env.donor.ID || got.Alias != "Dima" {
		t.Errorf("registered contributor = %+v", got)
	}
}

func TestContribute_RegisteredKeepsSuppliedAlias(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")

	rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), env.token(t, env.donor.ID), map[string]any{"amount": 200, "alias": "Secret Santa"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	contributions := env.store.Contributions(bike.ID)
	if len(contributions) != 1 {
		t.Fatalf("contributions = %d, want 1", len(contributions))
	}
	if got := contributions[0].Contributor; got.UserID != env.donor.ID || got.Alias != "Secret Santa" {
		t.Errorf("contributor = %+v, want donor as Secret Santa", got)
	}
}

func TestContribute_ErrorStatuses(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")

	tests := []struct {
		name  string
		path  string
		token string
		body  any
		want  int
	}{
		{"below minimum", itemPath(bike.ID, "/contribute"), "", map[string]any{"amount": 50}, http.StatusBadRequest},
		{"unknown item", itemPath(999, "/contribute"), "", map[string]any{"amount": 150}, http.StatusNotFound},
		{"bad id", "/api/items/abc/contribute", "", map[string]any{"amount": 150}, http.StatusBadRequest},
		{"bad token", itemPath(bike.ID, "/contribute"), "garbage", map[string]any{"amount": 150}, http.StatusUnauthorized},
		{"empty body", itemPath(bike.ID, "/contribute"), "", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.token, tt.body, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("expected error body, got %v (%v)", body, err)
			}
		})
	}
}

func TestContribute_RecipientIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	recipient := env.donor.ID
	list := env.store.AddWishlist(models.Wishlist{
		OwnerID:         env.owner.ID,
		Title:           "For Dima",
		Slug:            "for-dima",
		IsPublic:        true,
		RecipientMode:   models.RecipientFriend,
		RecipientUserID: &recipient,
	})
	watch := env.store.AddItem(models.WishlistItem{WishlistID: list.ID, Title: "watch", ProductURL: "https://shop.example/watch", TargetPrice: decimal.NewFromInt(5000)})

	rec := env.do(t, http.MethodPost, itemPath(watch.ID, "/contribute"), env.token(t, env.donor.ID), map[string]any{"amount": 150}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestContribute_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")
	headers := map[string]string{idempotency.HeaderKey: "pledge-1"}
	token := env.token(t, env.donor.ID)

	first := env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), token, map[string]any{"amount": 300}, headers)
	second := env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), token, map[string]any{"amount": 300}, headers)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get(idempotency.HeaderReplayed) != "true" {
		t.Errorf("second response not marked as replayed")
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if n := len(env.store.Contributions(bike.ID)); n != 1 {
		t.Errorf("contributions = %d, want 1", n)
	}
}

func TestRemoveItem_RefundsAndFillsActivity(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")
	donorToken := env.token(t, env.donor.ID)

	if rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/contribute"), donorToken, map[string]any{"amount": 300}, nil); rec.Code != http.StatusCreated {
		t.Fatalf("contribute status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/remove"), donorToken, map[string]any{"reason": "sold out"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner remove status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, itemPath(bike.ID, "/remove"), env.token(t, env.owner.ID), map[string]any{"reason": "sold out"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var removal service.RemovalResult
	if err := json.NewDecoder(rec.Body).Decode(&removal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if removal.Mode != service.RemovalDeletedWithRefund || !removal.RefundedTotal.Equal(decimal.NewFromInt(300)) {
		t.Errorf("removal = %+v", removal)
	}

	rec = env.do(t, http.MethodGet, "/api/activity/notifications", donorToken, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity status = %d", rec.Code)
	}
	var feed struct {
		Notifications []models.ActivityNotification `json:"notifications"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&feed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(feed.Notifications) != 1 || feed.Notifications[0].SourceItemTitle != "bike" {
		t.Errorf("notifications = %+v", feed.Notifications)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, itemPath(bike.ID, "/remove")},
		{http.MethodPatch, itemPath(bike.ID, "/priority")},
		{http.MethodPost, itemPath(bike.ID, "/responsible")},
		{http.MethodDelete, itemPath(bike.ID, "/responsible")},
		{http.MethodPost, "/api/wishlists/bday/items"},
		{http.MethodPost, "/api/wishlists"},
		{http.MethodPatch, "/api/wishlists/bday/visibility"},
		{http.MethodDelete, "/api/wishlists/bday"},
		{http.MethodGet, "/api/activity/notifications"},
	}
	for _, tt := range tests {
		rec := env.do(t, tt.method, tt.path, "", nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tt.method, tt.path, rec.Code)
		}
	}
}

func TestCreateItemAndGetWishlist(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.token(t, env.owner.ID)

	rec := env.do(t, http.MethodPost, "/api/wishlists/bday/items", ownerToken, map[string]any{
		"title":       "Kettle",
		"productUrl":  "https://shop.example/kettle",
		"targetPrice": 2500,
		"priority":    "high",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/wishlists/bday/items", ownerToken, map[string]any{
		"title":      "Kettle",
		"productUrl": "ftp://shop.example/kettle",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad url status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/wishlists/bday", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var view service.WishlistView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Title != "Kettle" || view.Items[0].Priority != models.PriorityHigh {
		t.Errorf("items = %+v", view.Items)
	}
	if view.CanEdit {
		t.Errorf("anonymous viewer can edit")
	}

	if rec := env.do(t, http.MethodGet, "/api/wishlists/missing", "", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing wishlist status = %d, want 404", rec.Code)
	}
}

func TestPriorityAndResponsible(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")
	ownerToken := env.token(t, env.owner.ID)
	donorToken := env.token(t, env.donor.ID)

	rec := env.do(t, http.MethodPatch, itemPath(bike.ID, "/priority"), ownerToken, map[string]any{"priority": "low"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("priority status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPatch, itemPath(bike.ID, "/priority"), ownerToken, map[string]any{"priority": "urgent"}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid priority status = %d, want 400", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/responsible"), donorToken, nil, nil); rec.Code != http.StatusCreated {
		t.Fatalf("assign status = %d, body = %s", rec.Code, rec.Body.String())
	}
	item, err := env.store.Wishlists().GetItem(context.Background(), bike.ID)
	if err != nil || item.ResponsibleUserID == nil || *item.ResponsibleUserID != env.donor.ID {
		t.Fatalf("responsible = %v (%v)", item, err)
	}

	if rec := env.do(t, http.MethodDelete, itemPath(bike.ID, "/responsible"), donorToken, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("release status = %d", rec.Code)
	}
	item, _ = env.store.Wishlists().GetItem(context.Background(), bike.ID)
	if item.ResponsibleUserID != nil {
		t.Errorf("responsible still set: %d", *item.ResponsibleUserID)
	}
}

func TestRealtime_PrivateWishlistIsHidden(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddWishlist(models.Wishlist{OwnerID: env.owner.ID, Title: "Secret", Slug: "secret"})

	rec := env.do(t, http.MethodGet, "/ws/wishlists/secret", "", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWishlistLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.token(t, env.owner.ID)

	rec := env.do(t, http.MethodPost, "/api/wishlists", ownerToken, map[string]any{
		"title":           "Wedding",
		"minContribution": 500,
		"dueDate":         "2020-06-01",
		"recipientMode":   "friend",
		"recipientInput":  "dima",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var list models.Wishlist
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Slug == "" || list.RecipientUserID == nil || *list.RecipientUserID != env.donor.ID {
		t.Fatalf("created = %+v", list)
	}

	rec = env.do(t, http.MethodPatch, "/api/wishlists/"+list.Slug+"/visibility", ownerToken, map[string]any{"isPublic": false}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("visibility status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/wishlists/"+list.Slug, "", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("anonymous GET of private list status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPatch, "/api/wishlists/"+list.Slug+"/visibility", ownerToken, map[string]any{}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("visibility without isPublic status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/wishlists/"+list.Slug, env.token(t, env.donor.ID), nil, nil); rec.Code != http.StatusForbidden {
		t.Errorf("delete by recipient status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/wishlists/"+list.Slug, ownerToken, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/wishlists/"+list.Slug, ownerToken, nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateWishlist_ValidationAndDueDate(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.token(t, env.owner.ID)

	if rec := env.do(t, http.MethodPost, "/api/wishlists", ownerToken, map[string]any{"title": "x"}, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("short title status = %d, want 400", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/wishlists", ownerToken, map[string]any{"title": "Later"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var list models.Wishlist
	_ = json.NewDecoder(rec.Body).Decode(&list)

	if rec := env.do(t, http.MethodDelete, "/api/wishlists/"+list.Slug, ownerToken, nil, nil); rec.Code != http.StatusConflict {
		t.Errorf("delete before due date status = %d, want 409", rec.Code)
	}
}

func TestReservations(t *testing.T) {
	env := newTestEnv(t)
	bike := env.item("bike", "1000")
	donorToken := env.token(t, env.donor.ID)

	rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/reserve"), "", map[string]any{"alias": "Ann"}, nil)
	if rec.Code != http.StatusCreated || !bytes.Contains(rec.Body.Bytes(), []byte(`"reserved"`)) {
		t.Fatalf("reserve status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, itemPath(bike.ID, "/reserve"), "", map[string]any{"alias": "ann"}, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"already_reserved"`)) {
		t.Fatalf("repeat reserve status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/reserve"), donorToken, nil, nil); rec.Code != http.StatusConflict {
		t.Errorf("reserve by another giver status = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, itemPath(bike.ID, "/reserve"), "", nil, nil); rec.Code != http.StatusForbidden {
		t.Errorf("anonymous cancel without alias status = %d, want 403", rec.Code)
	}

	view := env.do(t, http.MethodGet, "/api/wishlists/bday", "", nil, nil)
	if !bytes.Contains(view.Body.Bytes(), []byte(`"isReserved":true`)) {
		t.Errorf("wishlist view does not mark the item reserved: %s", view.Body.String())
	}

	rec = env.do(t, http.MethodDelete, itemPath(bike.ID, "/reserve"), "", map[string]any{"alias": "Ann"}, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"unreserved"`)) {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodPost, itemPath(bike.ID, "/reserve"), donorToken, nil, nil); rec.Code != http.StatusCreated {
		t.Fatalf("reserve by donor status = %d, body = %s", rec.Code, rec.Body.String())
	}
	view = env.do(t, http.MethodGet, "/api/wishlists/bday", donorToken, nil, nil)
	if !bytes.Contains(view.Body.Bytes(), []byte(`"isReservedByMe":true`)) {
		t.Errorf("wishlist view does not mark the item reserved by the donor: %s", view.Body.String())
	}
	if rec := env.do(t, http.MethodPost, itemPath(9999, "/reserve"), "", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("reserve unknown item status = %d, want 404", rec.Code)
	}
}
