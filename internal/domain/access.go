package domain

import "crypto/subtle"

// Access is what a caller may do with one event. Levels are ordered.
type Access int

const (
	AccessPublic Access = iota
	AccessReader
	AccessAdmin
	AccessOwner
)

func (a Access) String() string {
	switch a {
	case AccessOwner:
		return "owner"
	case AccessAdmin:
		return "admin"
	case AccessReader:
		return "reader"
	default:
		return "public"
	}
}

func (a Access) CanRead() bool  { return a >= AccessReader }
func (a Access) CanAdmin() bool { return a >= AccessAdmin }

// Credential is everything a request presents: an optional session user id
// and an optional event token from ?token= or X-Event-Token.
type Credential struct {
	UserID string
	Token  string
}

func (c Credential) HasSession() bool { return c.UserID != "" }
func (c Credential) HasToken() bool   { return c.Token != "" }

// Authorize resolves the caller's access to e. Owner wins over any token.
func Authorize(e *Event, c Credential) Access {
	if e == nil {
		return AccessPublic
	}
	if c.HasSession() && c.UserID == e.OwnerID {
		return AccessOwner
	}
	if c.HasToken() {
		if tokenEqual(c.Token, e.AdminToken) {
			return AccessAdmin
		}
		if tokenEqual(c.Token, e.AccessToken) {
			return AccessReader
		}
	}
	return AccessPublic
}

// Require checks that c reaches at least min on e. It returns 401 when the
// caller has no session and no matching token, and 403 when a session or a
// matching token is present but not enough.
func Require(e *Event, c Credential, min Access) (Access, error) {
	access := Authorize(e, c)
	if access >= min {
		return access, nil
	}
	if !c.HasSession() && access == AccessPublic {
		if c.HasToken() {
			return access, Unauthorized("invalid event token")
		}
		return access, Unauthorized("authentication required")
	}
	return access, Forbidden("insufficient access to this event")
}

func tokenEqual(presented, actual string) bool {
	if actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(actual)) == 1
}
