package model

import (
	"time"

	"github.com/sigauth/sigauth/engine/core"
)

type AuditAction string

const (
	AuditLogin          AuditAction = "LOGIN"
	AuditLogout         AuditAction = "LOGOUT"
	AuditKeyAdded       AuditAction = "KEY_ADDED"
	AuditKeyRevoked     AuditAction = "KEY_REVOKED"
	AuditRefreshRevoked AuditAction = "REFRESH_REVOKED"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditLogin, AuditLogout, AuditKeyAdded, AuditKeyRevoked, AuditRefreshRevoked:
		return true
	default:
		return false
	}
}

// AuditLog is an append-only security event.
type AuditLog struct {
	ID        core.ID     `db:"id"`
	UserID    core.ID     `db:"user_id"`
	Action    AuditAction `db:"action"`
	CreatedAt time.Time   `db:"created_at"`
	IPAddress string      `db:"ip_address"`
}
