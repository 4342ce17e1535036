package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/realtime"
	"github.com/Kerhoff/wishfund/internal/service"
)

// ---------------------------------------------------------------------------
// Wishlists
// ---------------------------------------------------------------------------

func (s *Server) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetWishlist(r.Context(), chi.URLParam(r, "slug"), viewerID(r))
	if err != nil {
		s.respondServiceError(w, err, "get wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

type createWishlistRequest struct {
	Title           string               `json:"title"`
	MinContribution decimal.Decimal      `json:"minContribution"`
	DueDate         string               `json:"dueDate"`
	RecipientMode   models.RecipientMode `json:"recipientMode"`
	RecipientInput  string               `json:"recipientInput"`
	IsPublic        *bool                `json:"isPublic"`
}

func (s *Server) handleCreateWishlist(w http.ResponseWriter, r *http.Request) {
	var req createWishlistRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := s.svc.CreateWishlist(r.Context(), viewerID(r), service.NewWishlist{
		Title:           req.Title,
		MinContribution: req.MinContribution,
		DueDate:         req.DueDate,
		RecipientMode:   req.RecipientMode,
		RecipientInput:  req.RecipientInput,
		IsPublic:        req.IsPublic,
	})
	if err != nil {
		s.respondServiceError(w, err, "create wishlist")
		return
	}
	s.respondJSON(w, http.StatusCreated, list)
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if req.IsPublic == nil {
		s.respondError(w, http.StatusBadRequest, "isPublic is required")
		return
	}

	list, err := s.svc.SetVisibility(r.Context(), chi.URLParam(r, "slug"), viewerID(r), *req.IsPublic)
	if err != nil {
		s.respondServiceError(w, err, "set visibility")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": list.ID, "slug": list.Slug, "isPublic": list.IsPublic})
}

func (s *Server) handleDeleteWishlist(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWishlist(r.Context(), chi.URLParam(r, "slug"), viewerID(r)); err != nil {
		s.respondServiceError(w, err, "delete wishlist")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createItemRequest struct {
	Title       string          `json:"title"`
	ProductURL  string          `json:"productUrl"`
	ImageURL    string          `json:"imageUrl"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Priority    models.Priority `json:"priority"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	item, err := s.svc.CreateItem(r.Context(), chi.URLParam(r, "slug"), viewerID(r), service.NewItem{
		Title:       req.Title,
		ProductURL:  req.ProductURL,
		ImageURL:    req.ImageURL,
		TargetPrice: req.TargetPrice,
		Priority:    req.Priority,
	})
	if err != nil {
		s.respondServiceError(w, err, "create item")
		return
	}
	s.respondJSON(w, http.StatusCreated, item)
}

// ---------------------------------------------------------------------------
// Funding
// ---------------------------------------------------------------------------

type contributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Alias  string          `json:"alias"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return
	}
	var req contributeRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	actor := models.Anonymous(req.Alias)
	if userID := viewerID(r); userID > 0 {
		actor = models.Registered(userID, req.Alias)
	}

	result, err := s.svc.Contribute(r.Context(), service.ContributeRequest{
		ItemID: itemID,
		Amount: req.Amount,
		Actor:  actor,
	})
	if err != nil {
		s.respondServiceError(w, err, "record contribution")
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

type removeItemRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return
	}
	var req removeItemRequest
	// The body is optional; the default reason applies without one.
	if r.ContentLength != 0 {
		if ok, msg := s.decodeJSON(r, &req); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return
		}
	}

	result, err := s.svc.RemoveItem(r.Context(), service.RemoveRequest{
		ItemID:  itemID,
		ActorID: viewerID(r),
		Reason:  req.Reason,
	})
	if err != nil {
		s.respondServiceError(w, err, "remove item")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Reservations
// ---------------------------------------------------------------------------

type reserveRequest struct {
	Alias string `json:"alias"`
}

// reserver builds the actor of a reservation call. The body is optional.
func (s *Server) reserver(w http.ResponseWriter, r *http.Request) (int64, models.Contributor, bool) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return 0, models.Contributor{}, false
	}
	var req reserveRequest
	if r.ContentLength != 0 {
		if ok, msg := s.decodeJSON(r, &req); !ok {
			s.respondError(w, http.StatusBadRequest, msg)
			return 0, models.Contributor{}, false
		}
	}

	actor := models.Anonymous(req.Alias)
	if userID := viewerID(r); userID > 0 {
		actor = models.Registered(userID, req.Alias)
	}
	return itemID, actor, true
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	itemID, actor, ok := s.reserver(w, r)
	if !ok {
		return
	}
	mode, err := s.svc.Reserve(r.Context(), itemID, actor)
	if err != nil {
		s.respondServiceError(w, err, "reserve item")
		return
	}
	status := http.StatusCreated
	if mode == service.ReservationAlreadyHeld {
		status = http.StatusOK
	}
	s.respondJSON(w, status, map[string]any{"ok": true, "mode": mode})
}

func (s *Server) handleUnreserve(w http.ResponseWriter, r *http.Request) {
	itemID, actor, ok := s.reserver(w, r)
	if !ok {
		return
	}
	mode, err := s.svc.Unreserve(r.Context(), itemID, actor)
	if err != nil {
		s.respondServiceError(w, err, "cancel reservation")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": mode})
}

// ---------------------------------------------------------------------------
// Item management
// ---------------------------------------------------------------------------

type priorityRequest struct {
	Priority models.Priority `json:"priority"`
}

func (s *Server) handleUpdatePriority(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return
	}
	var req priorityRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.svc.UpdatePriority(r.Context(), itemID, viewerID(r), req.Priority); err != nil {
		s.respondServiceError(w, err, "update priority")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": itemID, "priority": req.Priority})
}

func (s *Server) handleAssignResponsible(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return
	}
	userID := viewerID(r)
	if err := s.svc.AssignResponsible(r.Context(), itemID, userID); err != nil {
		s.respondServiceError(w, err, "assign responsible")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]any{"ok": true, "userId": userID})
}

func (s *Server) handleReleaseResponsible(w http.ResponseWriter, r *http.Request) {
	itemID, ok := s.requireItemID(w, r)
	if !ok {
		return
	}
	if err := s.svc.ReleaseResponsible(r.Context(), itemID, viewerID(r)); err != nil {
		s.respondServiceError(w, err, "release responsible")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Activity and realtime
// ---------------------------------------------------------------------------

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ActivityFeed(r.Context(), viewerID(r))
	if err != nil {
		s.respondServiceError(w, err, "get activity")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"notifications": entries})
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	// Same visibility rules as the wishlist itself.
	if _, err := s.svc.GetWishlist(r.Context(), slug, viewerID(r)); err != nil {
		s.respondServiceError(w, err, "open realtime connection")
		return
	}
	s.hub.ServeWS(w, r, realtime.WishlistRoom(slug))
}
