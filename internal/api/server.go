// Package api exposes the HTTP surface: request submission, polling, and
// the administrative grant/dismiss endpoints, plus registration and login
// when authentication is enabled.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/config"
	"github.com/lifelane/lifelane/internal/model"
	"github.com/lifelane/lifelane/internal/queue"
	"github.com/lifelane/lifelane/internal/store"
)

// Server hosts the LifeLane HTTP endpoints.
type Server struct {
	cfg    *config.Config
	store  store.Store
	auth   *auth.Service
	queue  *asynq.Client
	server *http.Server
	once   sync.Once
}

// New constructs a Server. queueClient may be nil; siren expiry is then left
// cosmetic and grants never schedule an expiry job.
func New(cfg *config.Config, s store.Store, authSvc *auth.Service, queueClient *asynq.Client) *Server {
	return &Server{
		cfg:   cfg,
		store: s,
		auth:  authSvc,
		queue: queueClient,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed handler with middleware applied. Exported so
// tests can drive the full stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/emergency-request", s.handleSubmit)
	mux.HandleFunc("/api/emergency-requests", s.handleList)
	mux.HandleFunc("/api/emergency-request/", s.handleRequestRoute)
	return corsMiddleware(loggingMiddleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(payload.Name) == "" || strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		respondError(w, http.StatusBadRequest, "name, email, and password are required")
		return
	}
	user, err := s.auth.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest, "email already exists")
			return
		}
		if errors.Is(err, auth.ErrMissingFields) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("register failed: %v", err)
		respondError(w, http.StatusInternalServerError, "server error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("login failed: %v", err)
		respondError(w, http.StatusInternalServerError, "server error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type submitPayload struct {
	PatientName        string `json:"patientName"`
	ProblemDescription string `json:"problemDescription"`
	Details            string `json:"details"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in := store.NewRequest{
		PatientName:        payload.PatientName,
		ProblemDescription: payload.ProblemDescription,
		Details:            payload.Details,
	}
	if s.cfg.AuthRequired {
		identity, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		in.OwnerID = identity.UserID
	}
	rec, err := s.store.Create(r.Context(), in)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	filter := store.Filter{}
	if s.cfg.AuthRequired {
		identity, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		// Non-admins only see their own submissions.
		if !identity.Admin {
			filter.OwnerID = identity.UserID
		}
	}
	requests, err := s.store.ListAll(r.Context(), filter)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (s *Server) handleRequestRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/emergency-request/")
	parts := strings.Split(path, "/")
	if len(parts) != 1 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[0]
	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, id)
	case http.MethodPut:
		s.handleTransition(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	var identity *auth.Identity
	if s.cfg.AuthRequired {
		var ok bool
		identity, ok = s.requireIdentity(w, r)
		if !ok {
			return
		}
	}
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if identity != nil && !identity.Admin && rec.OwnerID != identity.UserID {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type transitionPayload struct {
	Status model.Status `json:"status"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, id string) {
	if s.cfg.AuthRequired {
		identity, ok := s.requireIdentity(w, r)
		if !ok {
			return
		}
		if !identity.Admin {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
	}
	var payload transitionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}
	rec, err := s.store.Transition(r.Context(), id, payload.Status)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.scheduleExpiry(r.Context(), rec)
	respondJSON(w, http.StatusOK, rec)
}

// scheduleExpiry enqueues the delayed expiry job for a fresh grant. The
// grant stands even if the job cannot be scheduled; expiry is best effort.
func (s *Server) scheduleExpiry(ctx context.Context, rec *model.EmergencyRequest) {
	if s.queue == nil || !s.cfg.ExpiryEnabled() || !rec.Granted() || rec.Code == nil {
		return
	}
	payload := queue.ExpirePayload{RequestID: rec.ID, Code: *rec.Code}
	if err := queue.EnqueueExpire(ctx, s.queue, payload, s.cfg.SirenTTL); err != nil {
		log.Printf("schedule expiry for %s: %v", rec.ID, err)
	}
}

// requireIdentity extracts the bearer identity or writes a 401.
func (s *Server) requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, err := s.auth.FromHeader(r.Header.Get("Authorization"))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid or missing token")
		return nil, false
	}
	return identity, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "request not found")
	default:
		log.Printf("store error: %v", err)
		respondError(w, http.StatusInternalServerError, "server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
