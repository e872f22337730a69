package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authcore/cmd/identity"
	"authcore/cmd/security/password"
	"authcore/cmd/security/token"

	"go.uber.org/zap"
)

// maxTokenLen bounds presented bearer strings before any hashing or parsing.
const maxTokenLen = 4096

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Username    string
	DisplayName string
	Email       string
	Password    string
}

// UserView is the public projection of a user. It never carries the
// password hash.
type UserView struct {
	ID          string
	Username    string
	DisplayName *string
	Email       string
}

// TokenPair is one access token and one refresh token sharing a jti.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   UserView
	Tokens TokenPair
}

// ValidateResult is returned by ValidateToken. User is nil unless Valid.
type ValidateResult struct {
	Valid     bool
	User      *UserView
	ExpiresAt time.Time
}

// LogoutResult reports how many refresh sessions a logout revoked.
type LogoutResult struct {
	Message string
	Revoked int
}

// Manager orchestrates the credential and session lifecycle.
// It is safe for concurrent use.
type Manager struct {
	cfg      Config
	users    identity.Store
	sessions Store
	codec    token.Codec
	pw       password.Config

	log        *zap.Logger
	now        func() time.Time
	deny       Denylist
	metrics    *Metrics
	refreshKey []byte

	// dummyHash is verified for unknown emails so Login costs the same
	// whether or not the account exists.
	dummyHash string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithDenylist enables access-token revocation on logout.
func WithDenylist(d Denylist) Option {
	return func(m *Manager) { m.deny = d }
}

// WithMetrics records operation outcomes.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithRefreshHashKey stores refresh tokens as HMAC-SHA256 digests under key
// instead of plain SHA-256.
func WithRefreshHashKey(key []byte) Option {
	return func(m *Manager) { m.refreshKey = append([]byte(nil), key...) }
}

// NewManager validates cfg and wires the collaborators. cfg.HashCost, when
// set, overrides the work factor of pw.
func NewManager(cfg Config, users identity.Store, sessions Store, codec token.Codec, pw password.Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if users == nil || sessions == nil || codec == nil {
		return nil, fmt.Errorf("%w: users, sessions and codec are required", ErrConfig)
	}

	pw = pw.WithCost(cfg.HashCost)
	if err := pw.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	m := &Manager{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		codec:    codec,
		pw:       pw,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}

	dummy, err := pw.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("%w: password hasher: %v", ErrConfig, err)
	}
	m.dummyHash = dummy
	return m, nil
}

// Config returns the policy the manager was built with.
func (m *Manager) Config() Config { return m.cfg }

// Register creates a user and issues its first token pair.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	const op = "session.Register"
	defer m.observe("register", time.Now(), &err)

	reg := identity.Registration{
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Email:       in.Email,
	}
	if err := identity.ValidateRegistration(reg); err != nil {
		return AuthResult{}, invalidInput(op, inputMessage(err), err)
	}
	if err := m.pw.Validate(in.Password); err != nil {
		return AuthResult{}, invalidInput(op, m.passwordMessage(err), err)
	}

	// The store enforces uniqueness too; this check only gives the common
	// case a clean answer before paying for the hash.
	switch _, err := m.users.GetUserAuthByEmail(ctx, in.Email); {
	case err == nil:
		return AuthResult{}, &Error{Op: op, Kind: ErrConflict, Msg: msgEmailTaken}
	case !identity.IsNotFound(err):
		return AuthResult{}, storageErr(op, err)
	}

	hash, err := m.pw.Hash(in.Password)
	switch {
	case password.IsPolicyViolation(err):
		return AuthResult{}, invalidInput(op, m.passwordMessage(err), err)
	case err != nil:
		return AuthResult{}, internalErr(op, err)
	}

	now := m.now()
	user, err := m.users.CreateUser(ctx, identity.CreateUserInput{
		Username:     in.Username,
		DisplayName:  optional(in.DisplayName),
		Email:        in.Email,
		PasswordHash: hash,
		Now:          now,
	})
	switch {
	case identity.IsConflict(err):
		return AuthResult{}, &Error{Op: op, Kind: ErrConflict, Msg: msgEmailTaken, Err: err}
	case identity.IsInvalidInput(err):
		return AuthResult{}, invalidInput(op, inputMessage(err), err)
	case err != nil:
		return AuthResult{}, storageErr(op, err)
	}

	pair, err := m.issuePair(ctx, op, user, now)
	if err != nil {
		return AuthResult{}, err
	}

	m.log.Info("auth.register", zap.String("user_id", user.ID))
	return AuthResult{User: viewOf(user), Tokens: pair}, nil
}

// Login checks credentials and issues a token pair. Unknown email and wrong
// password fail with the same kind and message.
func (m *Manager) Login(ctx context.Context, email, pass string) (res AuthResult, err error) {
	const op = "session.Login"
	defer m.observe("login", time.Now(), &err)

	ua, err := m.users.GetUserAuthByEmail(ctx, email)
	switch {
	case identity.IsNotFound(err) || identity.IsInvalidInput(err):
		_, _ = m.pw.Verify(m.dummyHash, pass)
		m.log.Info("auth.login.failed", zap.String("reason", "unknown_email"))
		return AuthResult{}, unauthorized(op, msgInvalidCredentials, nil)
	case err != nil:
		return AuthResult{}, storageErr(op, err)
	}

	ok, err := m.pw.Verify(ua.PasswordHash, pass)
	if err != nil {
		m.log.Error("auth.login.hash.fail", zap.String("user_id", ua.User.ID), zap.Error(err))
		return AuthResult{}, unauthorized(op, msgInvalidCredentials, nil)
	}
	if !ok {
		m.log.Info("auth.login.failed", zap.String("reason", "bad_password"), zap.String("user_id", ua.User.ID))
		return AuthResult{}, unauthorized(op, msgInvalidCredentials, nil)
	}

	pair, err := m.issuePair(ctx, op, ua.User, m.now())
	if err != nil {
		return AuthResult{}, err
	}

	m.log.Info("auth.login", zap.String("user_id", ua.User.ID))
	return AuthResult{User: viewOf(ua.User), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// single use: of several concurrent calls with the same token, one wins and
// the rest fail with ErrUnauthorized.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	const op = "session.Refresh"
	defer m.observe("refresh", time.Now(), &err)

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > maxTokenLen {
		return TokenPair{}, unauthorized(op, msgInvalidRefresh, nil)
	}

	hash := token.HashRefreshTokenHex(refreshToken, m.refreshKey)
	now := m.now()

	row, err := m.sessions.FindActiveByTokenHash(ctx, hash)
	if errors.Is(err, ErrSessionNotFound) {
		if m.cfg.ReuseDetection {
			if err := m.detectReuse(ctx, hash, now); err != nil {
				return TokenPair{}, storageErr(op, err)
			}
		}
		return TokenPair{}, unauthorized(op, msgInvalidRefresh, nil)
	}
	if err != nil {
		return TokenPair{}, storageErr(op, err)
	}

	if row.ExpiresAt.Before(now) {
		won, err := m.sessions.Revoke(ctx, row.ID, now, ReasonExpired)
		if err != nil {
			return TokenPair{}, storageErr(op, err)
		}
		if won {
			m.metrics.revokedSessions(ReasonExpired, 1)
		}
		return TokenPair{}, unauthorized(op, msgInvalidRefresh, nil)
	}

	won, err := m.sessions.Revoke(ctx, row.ID, now, ReasonRotated)
	if err != nil {
		return TokenPair{}, storageErr(op, err)
	}
	if !won {
		m.log.Info("auth.refresh.lost_race", zap.String("session_id", row.ID))
		return TokenPair{}, unauthorized(op, msgInvalidRefresh, nil)
	}
	m.metrics.revokedSessions(ReasonRotated, 1)

	user, err := m.users.GetUserByID(ctx, row.UserID)
	switch {
	case identity.IsNotFound(err):
		return TokenPair{}, unauthorized(op, msgInvalidRefresh, err)
	case err != nil:
		return TokenPair{}, storageErr(op, err)
	}

	return m.issuePair(ctx, op, user, now)
}

// detectReuse revokes the whole family when hash belongs to a session that
// was already rotated away.
func (m *Manager) detectReuse(ctx context.Context, hash string, now time.Time) error {
	row, err := m.sessions.FindByTokenHash(ctx, hash)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if row.RevocationReason != ReasonRotated {
		return nil
	}

	revoked, err := m.sessions.RevokeAllForUser(ctx, row.UserID, now, ReasonReuseDetected)
	if err != nil {
		return err
	}
	m.metrics.revokedSessions(ReasonReuseDetected, len(revoked))
	m.denyPairs(ctx, revoked, now)

	m.log.Warn("auth.refresh.reuse_detected",
		zap.String("user_id", row.UserID),
		zap.String("session_id", row.ID),
		zap.Int("revoked", len(revoked)),
	)
	return nil
}

// Logout revokes every active refresh session of userID. Access tokens keep
// validating until they expire unless a Denylist is configured.
func (m *Manager) Logout(ctx context.Context, userID string) (res LogoutResult, err error) {
	const op = "session.Logout"
	defer m.observe("logout", time.Now(), &err)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LogoutResult{}, invalidInput(op, "user id is required", nil)
	}

	now := m.now()
	revoked, err := m.sessions.RevokeAllForUser(ctx, userID, now, ReasonLogout)
	if err != nil {
		return LogoutResult{}, storageErr(op, err)
	}
	m.metrics.revokedSessions(ReasonLogout, len(revoked))
	m.denyPairs(ctx, revoked, now)

	m.log.Info("auth.logout", zap.String("user_id", userID), zap.Int("revoked", len(revoked)))
	return LogoutResult{Message: "logged out", Revoked: len(revoked)}, nil
}

// denyPairs denylists the access token of each session until it would have
// expired on its own. Failures are logged; the refresh side is already cut.
func (m *Manager) denyPairs(ctx context.Context, revoked []Session, now time.Time) {
	if m.deny == nil {
		return
	}
	for _, s := range revoked {
		until := s.CreatedAt.Add(m.cfg.AccessTTL)
		if !until.After(now) {
			continue
		}
		if err := m.deny.Deny(ctx, s.JTI, until); err != nil {
			m.log.Warn("auth.denylist.add.fail", zap.String("jti", s.JTI), zap.Error(err))
		}
	}
}

// ValidateToken verifies an access token and resolves its subject. It never
// fails: any problem yields Valid == false.
func (m *Manager) ValidateToken(ctx context.Context, accessToken string) ValidateResult {
	start := time.Now()
	res := m.validate(ctx, accessToken)

	var err error
	if !res.Valid {
		err = ErrUnauthorized
	}
	m.observe("validate", start, &err)
	return res
}

func (m *Manager) validate(ctx context.Context, accessToken string) ValidateResult {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" || len(accessToken) > maxTokenLen {
		return ValidateResult{}
	}

	claims, err := m.codec.Verify(accessToken, m.now())
	if err != nil || claims.Kind != token.KindAccess {
		return ValidateResult{}
	}

	if m.deny != nil {
		denied, err := m.deny.IsDenied(ctx, claims.JTI)
		if err != nil {
			m.log.Warn("auth.denylist.lookup.fail", zap.Error(err))
			return ValidateResult{}
		}
		if denied {
			return ValidateResult{}
		}
	}

	user, err := m.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if !identity.IsNotFound(err) {
			m.log.Warn("auth.validate.user_lookup.fail", zap.Error(err))
		}
		return ValidateResult{}
	}

	view := viewOf(user)
	return ValidateResult{Valid: true, User: &view, ExpiresAt: claims.ExpiresAt}
}

// PurgeExpired deletes sessions that expired more than retention ago.
func (m *Manager) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	const op = "session.PurgeExpired"

	if retention < 0 {
		return 0, invalidInput(op, "retention must not be negative", nil)
	}
	cutoff := m.now().Add(-retention)
	n, err := m.sessions.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, storageErr(op, err)
	}
	if n > 0 {
		m.log.Info("session.purge", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func (m *Manager) issuePair(ctx context.Context, op string, user identity.User, now time.Time) (TokenPair, error) {
	jti, err := identity.NewULID(now)
	if err != nil {
		return TokenPair{}, internalErr(op, err)
	}

	claims := token.Claims{
		Subject:  user.ID,
		Username: user.Username,
		JTI:      jti,
		IssuedAt: now,
	}

	claims.Kind = token.KindAccess
	access, err := m.codec.Sign(claims, m.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, internalErr(op, err)
	}

	claims.Kind = token.KindRefresh
	refresh, err := m.codec.Sign(claims, m.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, internalErr(op, err)
	}

	refreshExp := now.Add(m.cfg.RefreshTTL)
	_, err = m.sessions.Create(ctx, CreateInput{
		UserID:    user.ID,
		TokenHash: token.HashRefreshTokenHex(refresh, m.refreshKey),
		JTI:       jti,
		CreatedAt: now,
		ExpiresAt: refreshExp,
	})
	if err != nil {
		return TokenPair{}, storageErr(op, err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(m.cfg.AccessTTL),
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) observe(op string, start time.Time, err *error) {
	m.metrics.observe(op, start, *err)
}

func (m *Manager) passwordMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return fmt.Sprintf("password must be at least %d characters", m.pw.Policy.MinLength)
	case errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Sprintf("password must be at most %d characters", m.pw.MaxLength())
	default:
		return "invalid password"
	}
}

func inputMessage(err error) string {
	var oe identity.OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return "invalid input"
}

func viewOf(u identity.User) UserView {
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
