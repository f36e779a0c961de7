package model

import "time"

// User is the stored credential record. PasswordHash never leaves the
// service layer; responses use AuthUser.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public returns the client-facing view of the record.
func (u User) Public() AuthUser {
	return AuthUser{ID: u.ID, Username: u.Username}
}

type AuthUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Credentials exist only for the duration of a register or login call.
type Credentials struct {
	Username string `json:"username" validate:"required,max=30,visible"`
	Password string `json:"password" validate:"required,max=72"`
}

// Principal is the authenticated identity bound to a single request.
type Principal struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

type TokenClaims struct {
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}
