package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"kasapos/backend/internal/advisory"
	"kasapos/backend/internal/cart"
	"kasapos/backend/internal/catalog"
	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/service"
	"kasapos/backend/internal/settlement"
	"kasapos/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	sessions      *SessionManager
	allowedOrigin string
	logger        *zap.Logger
}

func New(svc *service.Service, sessions *SessionManager, allowedOrigin string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &API{
		service:       svc,
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.withHeaders)
	r.Use(a.logRequests)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users", a.handleUsers)
		r.Post("/session/login", a.handleLogin)
		r.Get("/products", a.handleProducts)
		r.Get("/products/quick", a.handleQuickPicks)

		r.Group(func(r chi.Router) {
			r.Use(a.requireSession)

			r.Post("/session/logout", a.handleLogout)
			r.Post("/catalog/import", a.handleCatalogImport)

			r.Route("/till", func(r chi.Router) {
				r.Get("/", a.handleTillView)
				r.Post("/scan", a.handleScan)
				r.Post("/lines", a.handleAddLine)
				r.Patch("/lines/{barcode}", a.handleChangeQuantity)
				r.Delete("/lines/{barcode}", a.handleRemoveLine)
				r.Post("/refund-mode", a.handleToggleRefund)
				r.Post("/cancel", a.handleCancelReceipt)
				r.Post("/park", a.handlePark)
				r.Post("/parked/{slot}/retrieve", a.handleRetrieve)
				r.Post("/confirm", a.handleConfirm)
				r.Post("/decline", a.handleDecline)
				r.Post("/payment-dialog", a.handleOpenDialog)
				r.Delete("/payment-dialog", a.handleCloseDialog)
				r.Post("/complete", a.handleComplete)
				r.Post("/advice/{kind}", a.handleAdvice)
			})

			r.Get("/reports/daily", a.handleDailyReport)
			r.Get("/reports/remote", a.handleRemoteReport)
			r.Get("/outbox/failed", a.handleFailedDeliveries)
			r.Post("/outbox/replay", a.handleReplay)
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	return r
}

// requireSession resolves the bearer token to the terminal's open session.
// A token that outlived its session (logout, restart) is rejected.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token, err := a.sessions.Parse(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		session, err := a.service.Session(token.TerminalID, token.SessionID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	})
}

func (a *API) withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(startedAt)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"at":               time.Now().UTC().Format(time.RFC3339),
		"catalog_degraded": a.service.Catalog().Degraded(),
	})
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users": a.service.Users(),
	})
}

type loginRequest struct {
	TerminalID string `json:"terminal_id"`
	UserID     int    `json:"user_id"`
	Branch     string `json:"branch"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := a.service.Login(req.TerminalID, req.UserID, req.Branch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	token, expiresAt, err := a.sessions.Issue(session)
	if err != nil {
		// Issued tokens are the only handle to the session, so drop it.
		_ = a.service.Logout(session.TerminalID)
		a.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"session":    session,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	if err := a.service.Logout(session.TerminalID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var products []domain.Product
	if query == "" {
		products = a.service.Catalog().Products()
	} else {
		products = a.service.Catalog().Search(query)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"degraded": a.service.Catalog().Degraded(),
	})
}

func (a *API) handleQuickPicks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"products": a.service.Catalog().QuickPicks(),
	})
}

func (a *API) handleCatalogImport(w http.ResponseWriter, r *http.Request) {
	pending, err := a.till(r).RequestCatalogImport()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pending": pending})
}

func (a *API) handleTillView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.till(r).View())
}

type scanRequest struct {
	Input string `json:"input"`
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, errors.New("input is required"))
		return
	}

	line, err := a.till(r).Scan(req.Input)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line": line})
}

type addLineRequest struct {
	Barcode string `json:"barcode"`
}

func (a *API) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	line, err := a.till(r).AddProduct(strings.TrimSpace(req.Barcode))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"line": line})
}

type changeQuantityRequest struct {
	Delta int `json:"delta"`
}

func (a *API) handleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req changeQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, errors.New("delta must be non-zero"))
		return
	}

	till := a.till(r)
	if err := till.ChangeQuantity(chi.URLParam(r, "barcode"), req.Delta); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, till.View())
}

func (a *API) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	till := a.till(r)
	if err := till.RemoveLine(chi.URLParam(r, "barcode")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, till.View())
}

func (a *API) handleToggleRefund(w http.ResponseWriter, r *http.Request) {
	on, err := a.till(r).ToggleRefundMode()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refund_mode": on})
}

func (a *API) handleCancelReceipt(w http.ResponseWriter, r *http.Request) {
	pending, err := a.till(r).RequestCancelReceipt()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if pending == nil {
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pending": pending})
}

func (a *API) handlePark(w http.ResponseWriter, r *http.Request) {
	slot, err := a.till(r).Park()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"slot": slot})
}

func (a *API) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	slotID, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slotID <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("invalid slot id"))
		return
	}

	till := a.till(r)
	pending, err := till.RequestRetrieve(slotID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if pending == nil {
		writeJSON(w, http.StatusOK, map[string]any{"retrieved": true, "till": till.View()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"pending": pending})
}

func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	outcome, err := a.till(r).Confirm(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (a *API) handleDecline(w http.ResponseWriter, r *http.Request) {
	if err := a.till(r).Decline(); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"declined": true})
}

type openDialogRequest struct {
	Method string `json:"method"`
}

func (a *API) handleOpenDialog(w http.ResponseWriter, r *http.Request) {
	var req openDialogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	till := a.till(r)
	if err := till.OpenPaymentDialog(req.Method); err != nil {
		a.fail(w, r, err)
		return
	}
	response := map[string]any{"payment_dialog": req.Method}
	if req.Method == domain.PaymentMealCard {
		response["providers"] = domain.MealCardProviders()
	}
	writeJSON(w, http.StatusOK, response)
}

func (a *API) handleCloseDialog(w http.ResponseWriter, r *http.Request) {
	a.till(r).ClosePaymentDialog()
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleComplete(w http.ResponseWriter, r *http.Request) {
	var choice domain.PaymentChoice
	if err := decodeJSON(r, &choice); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.till(r).Complete(choice)
	if errors.Is(err, cart.ErrEmptyCart) {
		// Nothing to settle; not an error for the terminal.
		writeJSON(w, http.StatusOK, map[string]any{"completed": false})
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	tx := result.Transaction
	writeJSON(w, http.StatusOK, map[string]any{
		"completed":     true,
		"transaction":   tx,
		"payment_label": tx.Payment.Label(),
		"total_display": a.service.Money().Format(tx.TotalAmount),
		"state":         result.State,
		"remote_state":  result.Remote(),
	})
}

func (a *API) handleAdvice(w http.ResponseWriter, r *http.Request) {
	advice, err := a.till(r).Suggest(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advice)
}

func (a *API) handleFailedDeliveries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"failed": a.service.FailedDeliveries(),
	})
}

func (a *API) handleReplay(w http.ResponseWriter, r *http.Request) {
	queued, err := a.service.ReplayFailed(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued})
}

func (a *API) till(r *http.Request) *service.Till {
	session, _ := sessionFromContext(r.Context())
	return a.service.Till(session.TerminalID)
}

// fail maps a service error onto a status and writes it. 5xx errors are
// logged here since the response body hides them.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoSession), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrBranchNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrSlotNotFound),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionActive),
		errors.Is(err, service.ErrAdvisoryBusy),
		errors.Is(err, service.ErrNothingPending),
		errors.Is(err, settlement.ErrMethodDisabled),
		errors.Is(err, settlement.ErrZeroTotal),
		errors.Is(err, store.ErrCatalogNotEmpty),
		errors.Is(err, cart.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrProviderRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrUnknownMethod),
		errors.Is(err, service.ErrNoDialog),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidTerminal),
		errors.Is(err, advisory.ErrUnknownKind),
		errors.Is(err, advisory.ErrNoItems),
		errors.Is(err, store.ErrInvalidProduct):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are meant for the operator.
	msg := err.Error()
	if status >= http.StatusInternalServerError {
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
