package model

import (
	"time"

	"github.com/sigauth/sigauth/engine/core"
)

// User is an enrolled identity. Usernames are unique and case-sensitive.
type User struct {
	ID        core.ID   `db:"id"         json:"id"`
	Username  string    `db:"username"   json:"username"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}
