package model

import "github.com/sigauth/sigauth/engine/core"

// Subject is the identity carried by a validated bearer token.
type Subject struct {
	UserID core.ID
}
