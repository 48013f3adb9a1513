package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"svetafor/backend/internal/cart"
	"svetafor/backend/internal/domain"
	"svetafor/backend/internal/service"
	"svetafor/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/users/sellers", a.requireAuth(a.handleSellers, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/stores/", a.requireAuth(a.handleStoreScoped, domain.RoleSeller, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour
// bucket. Clients include it in the X-CSRF-Token header for mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login is exempt because it is called before the client can fetch a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleSellers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sellers, err := a.service.ListSellers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
	case http.MethodPost:
		var req domain.SellerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		seller, err := a.service.CreateSeller(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"seller": seller})
	default:
		writeMethodNotAllowed(w)
	}
}

// handleStoreScoped dispatches /api/v1/stores/{storeID}/... requests. Every
// route below this point is tenant-scoped: the actor's token must grant the
// store named in the path.
func (a *API) handleStoreScoped(w http.ResponseWriter, r *http.Request) {
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/stores/"), "/")
	segments := strings.Split(tail, "/")
	if len(segments) < 2 || segments[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	storeID := segments[0]

	actor, _ := service.ActorFromContext(r.Context())
	if !actor.CanAccessStore(storeID) {
		writeError(w, http.StatusForbidden, errors.New("store access denied"))
		return
	}

	rest := segments[2:]
	switch segments[1] {
	case "products":
		a.handleProducts(w, r, storeID, rest)
	case "carts":
		a.handleCarts(w, r, storeID, rest)
	case "orders":
		a.handleOrders(w, r, storeID, rest)
	case "debtors":
		a.handleDebtors(w, r, storeID, rest)
	case "exchange-rate":
		a.handleExchangeRate(w, r, storeID, rest)
	case "summary":
		a.handleSummary(w, r, storeID, rest)
	case "audit-logs":
		a.handleAuditLogs(w, r, storeID, rest)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500)
			products, err := a.service.ListProducts(r.Context(), storeID, r.URL.Query().Get("q"), limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"products": products})
		case http.MethodPost:
			var req domain.ProductCreateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			product, err := a.service.CreateProduct(r.Context(), storeID, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"product": product})
		default:
			writeMethodNotAllowed(w)
		}
	case 1:
		productID := rest[0]
		switch r.Method {
		case http.MethodGet:
			product, err := a.service.GetProduct(r.Context(), storeID, productID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"product": product})
		case http.MethodPatch:
			var req domain.ProductUpdateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			product, err := a.service.UpdateProduct(r.Context(), storeID, productID, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"product": product})
		default:
			writeMethodNotAllowed(w)
		}
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
	}
}

// handleCarts serves /carts/{terminalID}/{kind}[/...]. The working cart is
// addressed by terminal and kind so the order and debt flows on one terminal
// never share state.
func (a *API) handleCarts(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	if len(rest) < 2 || rest[0] == "" || rest[1] == "" {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	terminalID, kind := rest[0], rest[1]
	action := rest[2:]
	ctx := r.Context()

	respond := func(session cart.Session, err error) {
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cart": session})
	}

	switch {
	case len(action) == 0:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		respond(a.service.GetCart(ctx, storeID, terminalID, kind))

	case action[0] == "lines" && len(action) == 1:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.CartLineRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		respond(a.service.AddCartLine(ctx, storeID, terminalID, kind, req))

	case action[0] == "lines" && len(action) == 2:
		index, err := strconv.Atoi(action[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid line index"))
			return
		}
		switch r.Method {
		case http.MethodPut:
			var req domain.CartLineRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			respond(a.service.UpdateCartLine(ctx, storeID, terminalID, kind, index, req))
		case http.MethodDelete:
			respond(a.service.RemoveCartLine(ctx, storeID, terminalID, kind, index))
		default:
			writeMethodNotAllowed(w)
		}

	case action[0] == "lines" && len(action) == 3 && action[2] == "edit":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		index, err := strconv.Atoi(action[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid line index"))
			return
		}
		respond(a.service.BeginCartLineEdit(ctx, storeID, terminalID, kind, index))

	case action[0] == "editing" && len(action) == 1:
		switch r.Method {
		case http.MethodPost:
			var req domain.CartLineRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			respond(a.service.BeginCartLineAdd(ctx, storeID, terminalID, kind, req))
		case http.MethodPut:
			var req domain.CartLineRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			respond(a.service.SaveEditingCartLine(ctx, storeID, terminalID, kind, req))
		case http.MethodDelete:
			respond(a.service.CancelCartLineEditing(ctx, storeID, terminalID, kind))
		default:
			writeMethodNotAllowed(w)
		}

	case action[0] == "header" && len(action) == 1:
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w)
			return
		}
		var req domain.HeaderUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		respond(a.service.UpdateCartHeader(ctx, storeID, terminalID, kind, req))

	case action[0] == "reset" && len(action) == 1:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		respond(a.service.ResetCart(ctx, storeID, terminalID, kind))

	case action[0] == "submit" && len(action) == 1:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if kind != domain.CartKindOrder {
			writeError(w, http.StatusBadRequest, errors.New("only order carts submit here, debt carts submit through the debtor"))
			return
		}
		order, err := a.service.SubmitOrder(ctx, storeID, terminalID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain.OrderResponse{Order: order})

	default:
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
	}
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	switch len(rest) {
	case 0:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		orders, err := a.service.ListOrders(r.Context(), storeID, r.URL.Query().Get("date"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.OrderListResponse{Orders: orders})
	case 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		order, err := a.service.GetOrder(r.Context(), storeID, rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
	case 2:
		orderID := rest[0]
		switch rest[1] {
		case "cancel":
			if r.Method != http.MethodPost {
				writeMethodNotAllowed(w)
				return
			}
			order, err := a.service.CancelOrder(r.Context(), storeID, orderID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, domain.OrderResponse{Order: order})
		case "receipt":
			if r.Method != http.MethodGet {
				writeMethodNotAllowed(w)
				return
			}
			receipt, err := a.service.BuildReceipt(r.Context(), storeID, orderID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, receipt)
		default:
			writeError(w, http.StatusNotFound, errors.New("unknown route"))
		}
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
	}
}

func (a *API) handleDebtors(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	switch len(rest) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			limit := parsePositiveLimit(r.URL.Query().Get("limit"), 200, 500)
			debtors, err := a.service.ListDebtors(r.Context(), storeID, limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, domain.DebtorListResponse{Debtors: debtors})
		case http.MethodPost:
			var req domain.DebtorCreateRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			debtor, err := a.service.CreateDebtor(r.Context(), storeID, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, domain.DebtorResponse{Debtor: debtor})
		default:
			writeMethodNotAllowed(w)
		}
	case 1:
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		debtor, err := a.service.GetDebtor(r.Context(), storeID, rest[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.DebtorResponse{Debtor: debtor})
	case 2:
		if rest[1] != "documents" {
			writeError(w, http.StatusNotFound, errors.New("unknown route"))
			return
		}
		debtorID := rest[0]
		switch r.Method {
		case http.MethodGet:
			limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
			docs, err := a.service.ListDebtDocuments(r.Context(), storeID, debtorID, limit)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, domain.DebtDocumentListResponse{Documents: docs})
		case http.MethodPost:
			var req domain.SubmitDebtDocumentRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			doc, err := a.service.SubmitDebtDocument(r.Context(), storeID, debtorID, req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, domain.DebtDocumentResponse{Document: doc})
		default:
			writeMethodNotAllowed(w)
		}
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
	}
}

func (a *API) handleExchangeRate(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		rate, err := a.service.GetExchangeRate(r.Context(), storeID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exchange_rate": rate})
	case http.MethodPut:
		var req domain.ExchangeRateUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rate, err := a.service.SetExchangeRate(r.Context(), storeID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exchange_rate": rate})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	summary, err := a.service.DailySalesSummary(r.Context(), storeID, r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request, storeID string, rest []string) {
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, errors.New("unknown route"))
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.ListAuditLogs(r.Context(), storeID, r.URL.Query().Get("date"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeServiceError maps domain and storage errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, cart.ErrLineIndex):
		status = http.StatusBadRequest
	case errors.Is(err, cart.ErrNotEditing), errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	}
	writeError(w, status, err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message so internal details
	// (SQL errors, file paths) never reach the client.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
