package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/session"

	"go.uber.org/zap"
)

// Service is the session lifecycle as seen by the HTTP layer.
// *session.Manager implements it.
type Service interface {
	Register(ctx context.Context, in session.RegisterInput) (session.AuthResult, error)
	Login(ctx context.Context, email, password string) (session.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error)
	Logout(ctx context.Context, userID string) (session.LogoutResult, error)
	ValidateToken(ctx context.Context, accessToken string) session.ValidateResult
}

// Handler wires HTTP auth endpoints to the session Service.
type Handler struct {
	log     *zap.Logger
	cfg     Config
	svc     Service
	limiter *loginLimiter
	now     func() time.Time
}

// NewHandler constructs an auth Handler.
func NewHandler(log *zap.Logger, svc Service, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Handler{
		log:     log,
		cfg:     cfg,
		svc:     svc,
		limiter: newLoginLimiter(cfg),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/validate", h.handleValidate)
	mux.HandleFunc("/auth/me", h.handleMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	res, err := h.svc.Register(r.Context(), session.RegisterInput{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		h.writeServiceError(w, "auth.register", err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res.Tokens),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "email and password are required")
		return
	}

	now := h.now()
	ip := ipKey(clientIP(r, h.cfg.TrustProxy))
	ident := identity.NormalizeEmail(req.Email)

	// Throttle before any credential work.
	if blocked, retry := h.limiter.check(ip, ident, now); blocked {
		h.log.Warn("auth.login.throttled", zap.String("ip", ip), zap.Duration("retry_after", retry))
		writeRateLimited(w, retry)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			h.limiter.recordFailure(ip, ident, now)
		}
		h.writeServiceError(w, "auth.login", err)
		return
	}
	h.limiter.recordSuccess(ident)

	writeJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res.Tokens),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "refresh_token is required")
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, "auth.refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(pair)})
}

// handleLogout revokes every refresh session of the bearer token's subject.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Logout(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, "auth.logout", err)
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{Message: res.Message, Revoked: res.Revoked})
}

// handleValidate always answers 200; an unusable token is {"valid":false}.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tok := bearerToken(r)
	if r.ContentLength != 0 {
		var req validateRequest
		// Validation never errors; an unreadable body is just not a valid token.
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeJSON(w, http.StatusOK, validateResponse{})
			return
		}
		if t := strings.TrimSpace(req.Token); t != "" {
			tok = t
		}
	}

	res := h.svc.ValidateToken(r.Context(), tok)
	writeJSON(w, http.StatusOK, toValidateResponse(res))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	user, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(user)})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.UserView, bool) {
	tok := bearerToken(r)
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.UserView{}, false
	}
	res := h.svc.ValidateToken(r.Context(), tok)
	if !res.Valid || res.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.UserView{}, false
	}
	return *res.User, true
}

// writeServiceError maps a session error kind onto a status and a stable code.
// The message is always the client-safe one carried by the error.
func (h *Handler) writeServiceError(w http.ResponseWriter, event string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(event+".fail", zap.Error(err))
	}
	writeError(w, status, code, session.Message(err))
}

func statusFor(err error) (int, string) {
	switch kind := session.KindOf(err); {
	case errors.Is(kind, session.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(kind, session.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(kind, session.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(kind, session.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(kind, session.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
