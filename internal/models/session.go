package models

import "time"

// Session represents one active refresh-token grant. The session id doubles
// as the refresh token's embedded claim and the row's primary key. Revocation
// flips IsBlocked; rows are not deleted on revocation.
type Session struct {
	SessionID    string    `db:"session_id" json:"sessionId"`
	UserID       int64     `db:"user_id" json:"userId"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	UserAgent    string    `db:"user_agent" json:"userAgent"`
	ClientIP     string    `db:"client_ip" json:"clientIp"`
	IsBlocked    bool      `db:"is_blocked" json:"isBlocked"`
	ExpiredAt    time.Time `db:"expired_at" json:"expiredAt"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}
