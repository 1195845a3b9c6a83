package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session associates an opaque session id with a user. Sessions live in
// the session store under a TTL and are removed on logout or revocation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Claims is the bearer token payload. A token is only honored while the
// session it names still exists in the store, so deleting the session
// revokes the token immediately.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"uid"`
	jwt.RegisteredClaims
}
