// Package http exposes the receipt archive as a small JSON API. Every
// endpoint maps onto the same operations the CLI uses; there is no state
// here beyond the rate limiter.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"receipts/internal/core"
	"receipts/internal/format"
	"receipts/internal/handler"
	"receipts/internal/nlp"
	"receipts/internal/query"
	"receipts/internal/services"
)

type Server struct {
	http.Server
	service     *services.ReceiptService
	ingest      *handler.Handler
	store       Store
	engine      *query.Engine
	interpreter *nlp.Interpreter
	rateLimiter *rateLimiter
	listLimit   int

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// Store is the read surface the list and summary endpoints use.
type Store interface {
	Find(ctx context.Context, f core.ReceiptFilter) ([]core.Receipt, error)
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, service *services.ReceiptService, ingest *handler.Handler, store Store, interpreter *nlp.Interpreter, listLimit int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:     service,
		ingest:      ingest,
		store:       store,
		engine:      query.NewEngine(storeAdapter{store}),
		interpreter: interpreter,
		rateLimiter: newRateLimiter(),
		listLimit:   listLimit,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("POST /api/receipts", s.withMiddleware(s.handleCreateReceipt))
	mux.HandleFunc("GET /api/receipts", s.withMiddleware(s.handleListReceipts))
	mux.HandleFunc("GET /api/receipts/{id}", s.withMiddleware(s.handleGetReceipt))
	mux.HandleFunc("DELETE /api/receipts/{id}", s.withMiddleware(s.handleDeleteReceipt))
	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("POST /api/query", s.withMiddleware(s.handleQuery))

	return s
}

// storeAdapter lets the engine's All fall back to an unfiltered Find, so
// the server only needs one read method.
type storeAdapter struct {
	store Store
}

func (a storeAdapter) Find(ctx context.Context, f core.ReceiptFilter) ([]core.Receipt, error) {
	return a.store.Find(ctx, f)
}

func (a storeAdapter) All(ctx context.Context) ([]core.Receipt, error) {
	return a.store.Find(ctx, core.ReceiptFilter{})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutating requests
		if (r.Method == http.MethodPost || r.Method == http.MethodDelete) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	resp, err := s.ingest.Handle(r.Context(), raw)
	if err != nil {
		slog.ErrorContext(r.Context(), "Archive failed", "error", err)
		writeError(w, http.StatusInternalServerError, "archive failed")
		return
	}
	if !resp.OK {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.ReceiptFilter{
		Vendor:   strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if raw := strings.TrimSpace(q.Get("month")); raw != "" {
		month, err := core.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		filter.Month = month
	}

	receipts, err := s.store.Find(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if len(receipts) > s.listLimit {
		receipts = receipts[:s.listLimit]
	}

	views := make([]handler.ReceiptView, 0, len(receipts))
	for _, rec := range receipts {
		views = append(views, handler.NewReceiptView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipts": views, "count": len(views)})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "receipt id must be an integer")
		return
	}

	rec, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, handler.NewReceiptView(rec))
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "receipt id must be an integer")
		return
	}
	removeImage := r.URL.Query().Get("delete_image") == "true"

	if err := s.service.Delete(r.Context(), id, removeImage); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := core.ParseMonth(strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	res, err := s.engine.Execute(r.Context(), core.SummarizeIntent{Month: month})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sum := res.(query.Summary).Summary
	writeJSON(w, http.StatusOK, summaryView(sum))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q string `json:"q"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be JSON with a q field")
		return
	}

	intent := s.interpreter.Interpret(req.Q)
	res, err := s.engine.Execute(r.Context(), intent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := map[string]any{"text": format.Result(res)}
	switch v := res.(type) {
	case query.ReceiptList:
		receipts := v.Receipts
		if len(receipts) > s.listLimit {
			receipts = receipts[:s.listLimit]
		}
		views := make([]handler.ReceiptView, 0, len(receipts))
		for _, rec := range receipts {
			views = append(views, handler.NewReceiptView(rec))
		}
		out["receipts"] = views
	case query.Summary:
		out["summary"] = summaryView(v.Summary)
	}
	writeJSON(w, http.StatusOK, out)
}

type categoryAmountView struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type currencyTotalView struct {
	Currency   string               `json:"currency"`
	Total      string               `json:"total"`
	ByCategory []categoryAmountView `json:"by_category"`
}

type monthSummaryView struct {
	Month  string              `json:"month"`
	Count  int                 `json:"count"`
	Totals []currencyTotalView `json:"totals"`
	Text   string              `json:"text"`
}

func summaryView(s core.MonthSummary) monthSummaryView {
	view := monthSummaryView{
		Month: s.Month.String(),
		Count: s.Count,
		Text:  format.Summary(s),
	}
	for _, ct := range s.Totals {
		tv := currencyTotalView{Currency: ct.Currency, Total: ct.Total.Decimal()}
		for _, ca := range ct.ByCategory {
			tv.ByCategory = append(tv.ByCategory, categoryAmountView{Category: ca.Category, Amount: ca.Amount.Decimal()})
		}
		view.Totals = append(view.Totals, tv)
	}
	return view
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf  *core.NotFoundError
		iq  *core.InvalidQueryError
		ui  *core.UnresolvedIntentError
		val *core.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &iq):
		writeError(w, http.StatusBadRequest, iq.Error())
	case errors.As(err, &ui):
		writeError(w, http.StatusUnprocessableEntity, ui.Error())
	case errors.As(err, &val):
		writeError(w, http.StatusUnprocessableEntity, val.Error())
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
