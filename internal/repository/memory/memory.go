// Package memory is an in-process implementation of the repository
// interfaces. A single mutex serializes ledger transactions, and every
// transaction works on a copy of the state that is swapped in on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/money"
	"github.com/Kerhoff/wishfund/internal/repository"
)

type state struct {
	nextID        int64
	users         map[int64]models.User
	wishlists     map[int64]models.Wishlist
	items         map[int64]models.WishlistItem
	contributions map[int64]models.Contribution
	credits       map[int64]models.ContributionCredit
	activity      map[int64]models.ActivityNotification
	responsibles  map[int64]int64 // item id -> user id
	reservations  map[int64]models.Reservation
}

func newState() *state {
	return &state{
		users:         make(map[int64]models.User),
		wishlists:     make(map[int64]models.Wishlist),
		items:         make(map[int64]models.WishlistItem),
		contributions: make(map[int64]models.Contribution),
		credits:       make(map[int64]models.ContributionCredit),
		activity:      make(map[int64]models.ActivityNotification),
		responsibles:  make(map[int64]int64),
		reservations:  make(map[int64]models.Reservation),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		nextID:        s.nextID,
		users:         cloneMap(s.users),
		wishlists:     cloneMap(s.wishlists),
		items:         cloneMap(s.items),
		contributions: cloneMap(s.contributions),
		credits:       cloneMap(s.credits),
		activity:      cloneMap(s.activity),
		responsibles:  cloneMap(s.responsibles),
		reservations:  cloneMap(s.reservations),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// withCollected returns a copy of the item with its derived aggregates
func (s *state) withCollected(item models.WishlistItem) *models.WishlistItem {
	collected := money.Zero
	count := 0
	for _, c := range s.contributions {
		if c.ItemID == item.ID {
			collected = money.Add(collected, c.Amount)
			count++
		}
	}
	item.Collected = collected
	item.ContributorsCount = count
	item.ResponsibleUserID = nil
	if uid, ok := s.responsibles[item.ID]; ok {
		u := uid
		item.ResponsibleUserID = &u
	}
	item.Reservation = s.reservationOf(item.ID)
	return &item
}

func (s *state) reservationOf(itemID int64) *models.Reservation {
	for _, r := range s.reservations {
		if r.ItemID == itemID {
			found := r
			return &found
		}
	}
	return nil
}

// deleteItem removes an item and every row that references it
func (s *state) deleteItem(itemID int64) {
	delete(s.items, itemID)
	delete(s.responsibles, itemID)
	for id, c := range s.contributions {
		if c.ItemID == itemID {
			delete(s.contributions, id)
		}
	}
	for id, r := range s.reservations {
		if r.ItemID == itemID {
			delete(s.reservations, id)
		}
	}
	for id, c := range s.credits {
		if c.SourceItemID != nil && *c.SourceItemID == itemID {
			c.SourceItemID = nil
			s.credits[id] = c
		}
	}
}

func (s *state) itemsOf(wishlistID int64, activeOnly bool) []*models.WishlistItem {
	var out []*models.WishlistItem
	for _, item := range s.items {
		if item.WishlistID != wishlistID {
			continue
		}
		if activeOnly && item.Status != models.ItemStatusActive {
			continue
		}
		out = append(out, s.withCollected(item))
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Store holds every table in memory
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// Users returns the store as a user repository
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Wishlists returns the store as a wishlist repository
func (s *Store) Wishlists() repository.WishlistRepository { return wishlistRepo{s} }

// Activity returns the store as an activity repository
func (s *Store) Activity() repository.ActivityRepository { return activityRepo{s} }

// Ledger returns the store as a ledger repository
func (s *Store) Ledger() repository.LedgerRepository { return ledgerRepo{s} }

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

// Accounts, wishlists and credits are created by other services; these
// helpers load them for local runs and tests.

// AddUser stores a user and returns it with its id
func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.state.id()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.state.users[u.ID] = u
	return u
}

// AddWishlist stores a wishlist and returns it with its id
func (s *Store) AddWishlist(w models.Wishlist) models.Wishlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = s.state.id()
	if w.RecipientMode == "" {
		w.RecipientMode = models.RecipientSelf
	}
	if w.MinContribution.IsZero() {
		w.MinContribution = models.DefaultMinContribution
	}
	if w.CurrencyCode == "" {
		w.CurrencyCode = "RUB"
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}
	s.state.wishlists[w.ID] = w
	return w
}

// AddItem stores an item and returns it with its id
func (s *Store) AddItem(item models.WishlistItem) models.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.state.id()
	if item.Status == "" {
		item.Status = models.ItemStatusActive
	}
	if item.Priority == "" {
		item.Priority = models.PriorityMedium
	}
	item.CreatedAt = s.now()
	s.state.items[item.ID] = item
	return item
}

// AddCredit stores a contribution credit and returns it with its id
func (s *Store) AddCredit(c models.ContributionCredit) models.ContributionCredit {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.state.id()
	if c.Status == "" {
		c.Status = models.CreditAvailable
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.state.credits[c.ID] = c
	return c
}

// AddContribution stores a contribution row directly
func (s *Store) AddContribution(c models.Contribution) models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.state.id()
	c.CreatedAt = s.now()
	s.state.contributions[c.ID] = c
	return c
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Contributions returns all contributions of an item ordered by id
func (s *Store) Contributions(itemID int64) []models.Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.contributionsOf(itemID)
}

// Credits returns the user's credits for a wishlist ordered by id
func (s *Store) Credits(userID, wishlistID int64) []models.ContributionCredit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContributionCredit
	for _, c := range s.state.credits {
		if c.UserID == userID && c.WishlistID == wishlistID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) contributionsOf(itemID int64) []models.Contribution {
	var out []models.Contribution
	for _, c := range s.contributions {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *models.User
	for _, u := range r.s.state.users {
		if u.Username == "" || !strings.EqualFold(u.Username, username) {
			continue
		}
		if found == nil || u.ID < found.ID {
			match := u
			found = &match
		}
	}
	return found, nil
}

func (r userRepo) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Wishlists
// ---------------------------------------------------------------------------

type wishlistRepo struct{ s *Store }

func (r wishlistRepo) Create(_ context.Context, list *models.Wishlist) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.state.wishlists {
		if w.Slug == list.Slug {
			return nil, fmt.Errorf("failed to create wishlist: slug %q is taken", list.Slug)
		}
	}
	list.ID = r.s.state.id()
	list.CreatedAt = r.s.now()
	r.s.state.wishlists[list.ID] = *list
	return list, nil
}

func (r wishlistRepo) SetVisibility(_ context.Context, id int64, isPublic bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.state.wishlists[id]
	if !ok {
		return fmt.Errorf("wishlist with ID %d not found", id)
	}
	w.IsPublic = isPublic
	r.s.state.wishlists[id] = w
	return nil
}

func (r wishlistRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state
	if _, ok := st.wishlists[id]; !ok {
		return fmt.Errorf("wishlist with ID %d not found", id)
	}
	for itemID, item := range st.items {
		if item.WishlistID == id {
			st.deleteItem(itemID)
		}
	}
	for creditID, c := range st.credits {
		if c.WishlistID == id {
			delete(st.credits, creditID)
		}
	}
	for activityID, n := range st.activity {
		if n.WishlistID != nil && *n.WishlistID == id {
			n.WishlistID = nil
			st.activity[activityID] = n
		}
	}
	delete(st.wishlists, id)
	return nil
}

func (r wishlistRepo) GetByID(_ context.Context, id int64) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.state.wishlists[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r wishlistRepo) GetBySlug(_ context.Context, slug string) (*models.Wishlist, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.state.wishlists {
		if w.Slug == slug {
			found := w
			return &found, nil
		}
	}
	return nil, nil
}

func (r wishlistRepo) GetItem(_ context.Context, itemID int64) (*models.WishlistItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.state.items[itemID]
	if !ok {
		return nil, nil
	}
	return r.s.state.withCollected(item), nil
}

func (r wishlistRepo) ListItems(_ context.Context, wishlistID int64) ([]*models.WishlistItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.state.itemsOf(wishlistID, false), nil
}

func (r wishlistRepo) CreateItem(_ context.Context, item *models.WishlistItem) (*models.WishlistItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = r.s.state.id()
	item.Status = models.ItemStatusActive
	item.CreatedAt = r.s.now()
	item.Collected = decimal.Zero
	r.s.state.items[item.ID] = *item
	return item, nil
}

func (r wishlistRepo) UpdatePriority(_ context.Context, itemID int64, priority models.Priority) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.state.items[itemID]
	if !ok {
		return fmt.Errorf("wishlist item with ID %d not found", itemID)
	}
	item.Priority = priority
	r.s.state.items[itemID] = item
	return nil
}

func (r wishlistRepo) SetResponsible(_ context.Context, itemID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.responsibles[itemID] = userID
	return nil
}

func (r wishlistRepo) ClearResponsible(_ context.Context, itemID, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.state.responsibles[itemID] == userID {
		delete(r.s.state.responsibles, itemID)
	}
	return nil
}

func (r wishlistRepo) CreateReservation(_ context.Context, res *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.state.reservationOf(res.ItemID) != nil {
		return repository.ErrAlreadyReserved
	}
	res.ID = r.s.state.id()
	res.CreatedAt = r.s.now()
	r.s.state.reservations[res.ID] = *res
	return nil
}

func (r wishlistRepo) DeleteReservation(_ context.Context, reservationID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.state.reservations, reservationID)
	return nil
}

func (r wishlistRepo) InvestedTotal(_ context.Context, userID, wishlistID int64) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := money.Zero
	for _, c := range r.s.state.contributions {
		item, ok := r.s.state.items[c.ItemID]
		if !ok || item.WishlistID != wishlistID {
			continue
		}
		if c.Contributor.IsRegistered() && c.Contributor.UserID == userID {
			total = money.Add(total, c.Amount)
		}
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// Activity
// ---------------------------------------------------------------------------

type activityRepo struct{ s *Store }

func (r activityRepo) ListUnread(_ context.Context, userID int64, limit int) ([]*models.ActivityNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ActivityNotification
	for _, n := range r.s.state.activity {
		if n.UserID != userID || n.IsRead {
			continue
		}
		found := n
		if found.WishlistID != nil {
			if w, ok := r.s.state.wishlists[*found.WishlistID]; ok {
				found.WishlistTitle = w.Title
			}
		}
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r activityRepo) MarkRead(_ context.Context, userID int64, ids []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		n, ok := r.s.state.activity[id]
		if ok && n.UserID == userID {
			n.IsRead = true
			r.s.state.activity[id] = n
		}
	}
	return nil
}
