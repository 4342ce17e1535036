// Package api exposes the funding ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishfund/internal/identity"
	"github.com/Kerhoff/wishfund/internal/idempotency"
	"github.com/Kerhoff/wishfund/internal/realtime"
	"github.com/Kerhoff/wishfund/internal/service"
)

// Server provides the HTTP API and the realtime endpoint.
type Server struct {
	svc            *service.Service
	identity       *identity.Resolver
	hub            *realtime.Hub
	idempotency    idempotency.Store
	idempotencyTTL time.Duration
	logger         *logrus.Logger
}

// NewServer creates a Server. hub may be nil, which disables /ws.
func NewServer(svc *service.Service, resolver *identity.Resolver, hub *realtime.Hub,
	idem idempotency.Store, idemTTL time.Duration, logger *logrus.Logger,
) *Server {
	return &Server{
		svc:            svc,
		identity:       resolver,
		hub:            hub,
		idempotency:    idem,
		idempotencyTTL: idemTTL,
		logger:         logger,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/wishlists/{slug}", s.handleGetWishlist)

		r.With(idempotency.Middleware(s.idempotency, s.idempotencyTTL, s.idempotencyScope, s.logger)).
			Post("/items/{id}/contribute", s.handleContribute)
		r.Post("/items/{id}/reserve", s.handleReserve)
		r.Delete("/items/{id}/reserve", s.handleUnreserve)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Post("/wishlists", s.handleCreateWishlist)
			r.Patch("/wishlists/{slug}/visibility", s.handleSetVisibility)
			r.Delete("/wishlists/{slug}", s.handleDeleteWishlist)
			r.Post("/wishlists/{slug}/items", s.handleCreateItem)
			r.Post("/items/{id}/remove", s.handleRemoveItem)
			r.Patch("/items/{id}/priority", s.handleUpdatePriority)
			r.Post("/items/{id}/responsible", s.handleAssignResponsible)
			r.Delete("/items/{id}/responsible", s.handleReleaseResponsible)
			r.Get("/activity/notifications", s.handleActivity)
		})
	})

	if s.hub != nil {
		r.Get("/ws/wishlists/{slug}", s.handleRealtime)
	}

	return r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("HTTP request")
	})
}

// authenticate attaches the user id of a valid bearer token. Requests
// without a token continue anonymously; a bad token is rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.identity.UserIDFromRequest(r)
		switch {
		case errors.Is(err, identity.ErrNoToken):
			next.ServeHTTP(w, r)
		case err != nil:
			s.respondError(w, http.StatusUnauthorized, "invalid token")
		default:
			next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), userID)))
		}
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.UserID(r.Context()); !ok {
			s.respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// idempotencyScope keeps keys of different callers apart
func (s *Server) idempotencyScope(r *http.Request) string {
	if userID, ok := identity.UserID(r.Context()); ok {
		return "u:" + strconv.FormatInt(userID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "a:" + host
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service rejections onto HTTP statuses. Anything
// unexpected is logged and reported as a 500 without details.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, status, "failed to "+action)
		return
	}
	s.respondError(w, status, err.Error())
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil || r.Body == http.NoBody {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path value and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

// requireItemID reads the {id} path value. It writes an error response and
// returns false when the value is invalid.
func (s *Server) requireItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "item id must be a positive integer")
		return 0, false
	}
	return id, true
}

func viewerID(r *http.Request) int64 {
	id, _ := identity.UserID(r.Context())
	return id
}
