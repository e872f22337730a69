package natsrpc

import (
	"time"

	"authcore/cmd/internal/auth/session"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	UserID string `json:"userId"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type userReply struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	Email       string  `json:"email"`
}

type authReply struct {
	User             userReply `json:"user"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type tokenReply struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type logoutReply struct {
	Message string `json:"message"`
	Revoked int    `json:"revoked"`
}

type validateReply struct {
	Valid     bool       `json:"valid"`
	User      *userReply `json:"user,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorReply struct {
	Error errorBody `json:"error"`
}

func toUserReply(u session.UserView) userReply {
	return userReply{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Email: u.Email}
}

func toAuthReply(res session.AuthResult) authReply {
	return authReply{
		User:             toUserReply(res.User),
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
	}
}

func toTokenReply(p session.TokenPair) tokenReply {
	return tokenReply{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func toValidateReply(res session.ValidateResult) validateReply {
	if !res.Valid || res.User == nil {
		return validateReply{}
	}
	u := toUserReply(*res.User)
	exp := res.ExpiresAt
	return validateReply{Valid: true, User: &u, ExpiresAt: &exp}
}
