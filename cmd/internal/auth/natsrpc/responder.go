// Package natsrpc serves the session lifecycle over NATS request/reply.
//
// Each operation listens on its own subject (auth.register, auth.login,
// auth.refresh, auth.logout, auth.validate). Replies are JSON: the result
// object on success, {"error":{"code","message"}} otherwise.
//
// Requests may also arrive wrapped as {"pattern","data","id"}. Those get the
// matching envelope back: {"id","response","isDisposed"} on success and
// {"id","err","isDisposed"} on failure.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/session"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects served by the Responder.
const (
	SubjectRegister = "auth.register"
	SubjectLogin    = "auth.login"
	SubjectRefresh  = "auth.refresh"
	SubjectLogout   = "auth.logout"
	SubjectValidate = "auth.validate"
)

// Subjects lists every subject in subscription order.
var Subjects = []string{SubjectRegister, SubjectLogin, SubjectRefresh, SubjectLogout, SubjectValidate}

// Service is the session lifecycle as seen by the bus.
type Service interface {
	Register(ctx context.Context, in session.RegisterInput) (session.AuthResult, error)
	Login(ctx context.Context, email, password string) (session.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, error)
	Logout(ctx context.Context, userID string) (session.LogoutResult, error)
	ValidateToken(ctx context.Context, accessToken string) session.ValidateResult
}

// Responder answers auth requests arriving on NATS.
type Responder struct {
	svc     Service
	log     *zap.Logger
	timeout time.Duration
	logins  *windowLimiter
	now     func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Responder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTimeout bounds the handling of each request. The default is 5s.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLoginLimit allows at most limit auth.login requests per email within
// window. A non-positive limit disables the check.
func WithLoginLimit(limit int, window time.Duration) Option {
	return func(r *Responder) { r.logins = newWindowLimiter(limit, window) }
}

// WithClock overrides the time source used for login limiting.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResponder returns a Responder for svc.
func NewResponder(svc Service, opts ...Option) (*Responder, error) {
	if svc == nil {
		return nil, errors.New("natsrpc: nil service")
	}
	r := &Responder{
		svc:     svc,
		log:     zap.NewNop(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Subscribe registers one queue subscription per subject. Every replica in
// the same queue group shares the load.
func (r *Responder) Subscribe(nc *nats.Conn, queue string) ([]*nats.Subscription, error) {
	subs := make([]*nats.Subscription, 0, len(Subjects))
	for _, subject := range Subjects {
		sub, err := nc.QueueSubscribe(subject, queue, r.serve)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (r *Responder) serve(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	reply := r.Handle(ctx, msg.Subject, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		r.log.Warn("natsrpc.respond.fail", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Handle dispatches one request and returns the encoded reply.
func (r *Responder) Handle(ctx context.Context, subject string, data []byte) []byte {
	env, ok := unwrap(data)
	if !ok {
		out, _ := r.dispatch(ctx, subject, data)
		return out
	}
	out, failed := r.dispatch(ctx, subject, env.Data)
	return wrap(env.ID, out, failed)
}

// dispatch reports failed=true when out is an error reply.
func (r *Responder) dispatch(ctx context.Context, subject string, data []byte) (out []byte, failed bool) {
	switch subject {
	case SubjectRegister:
		var req registerRequest
		if err := decode(data, &req); err != nil {
			return encodeError("invalid_json", "invalid request body"), true
		}
		res, err := r.svc.Register(ctx, session.RegisterInput{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Password:    req.Password,
		})
		if err != nil {
			return r.serviceError(subject, err), true
		}
		return encode(toAuthReply(res)), false

	case SubjectLogin:
		var req loginRequest
		if err := decode(data, &req); err != nil {
			return encodeError("invalid_json", "invalid request body"), true
		}
		if email := identity.NormalizeEmail(req.Email); email != "" && !r.logins.Allow(email, r.now()) {
			r.log.Warn("natsrpc.login.throttled")
			return encodeError("rate_limited", "too many login attempts"), true
		}
		res, err := r.svc.Login(ctx, req.Email, req.Password)
		if err != nil {
			return r.serviceError(subject, err), true
		}
		return encode(toAuthReply(res)), false

	case SubjectRefresh:
		var req refreshRequest
		if err := decode(data, &req); err != nil {
			return encodeError("invalid_json", "invalid request body"), true
		}
		pair, err := r.svc.Refresh(ctx, req.RefreshToken)
		if err != nil {
			return r.serviceError(subject, err), true
		}
		return encode(toTokenReply(pair)), false

	case SubjectLogout:
		var req logoutRequest
		if err := decode(data, &req); err != nil {
			return encodeError("invalid_json", "invalid request body"), true
		}
		res, err := r.svc.Logout(ctx, req.UserID)
		if err != nil {
			return r.serviceError(subject, err), true
		}
		return encode(logoutReply{Message: res.Message, Revoked: res.Revoked}), false

	case SubjectValidate:
		// Malformed payloads validate as false, like any other bad token.
		var req validateRequest
		_ = decode(data, &req)
		return encode(toValidateReply(r.svc.ValidateToken(ctx, req.Token))), false

	default:
		return encodeError("unknown_subject", "unknown subject"), true
	}
}

func (r *Responder) serviceError(subject string, err error) []byte {
	code := errorCode(err)
	if code == "storage_error" || code == "internal_error" {
		r.log.Error("natsrpc.request.fail", zap.String("subject", subject), zap.Error(err))
	}
	return encodeError(code, session.Message(err))
}

func errorCode(err error) string {
	switch kind := session.KindOf(err); {
	case errors.Is(kind, session.ErrConflict):
		return "conflict"
	case errors.Is(kind, session.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(kind, session.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(kind, session.ErrNotFound):
		return "not_found"
	case errors.Is(kind, session.ErrStorage):
		return "storage_error"
	default:
		return "internal_error"
	}
}

func decode(data []byte, dst any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, dst)
}

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return encodeError("internal_error", "internal error")
	}
	return b
}

func encodeError(code, msg string) []byte {
	b, _ := json.Marshal(errorReply{Error: errorBody{Code: code, Message: msg}})
	return b
}

type envelope struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data"`
	ID      string          `json:"id"`
}

type envelopeReply struct {
	ID         string          `json:"id"`
	Response   json.RawMessage `json:"response,omitempty"`
	Err        json.RawMessage `json:"err,omitempty"`
	IsDisposed bool            `json:"isDisposed"`
}

// unwrap recognizes the {"pattern","data","id"} request form. A plain payload
// with a top-level "data" field is not an envelope unless "pattern" is set.
func unwrap(data []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, false
	}
	if env.Pattern == "" || len(env.Data) == 0 {
		return envelope{}, false
	}
	return env, true
}

func wrap(id string, out []byte, failed bool) []byte {
	reply := envelopeReply{ID: id, IsDisposed: true}
	if failed {
		reply.Err = out
	} else {
		reply.Response = out
	}
	b, err := json.Marshal(reply)
	if err != nil {
		return out
	}
	return b
}
