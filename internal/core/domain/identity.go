// Package domain concentra entidades e estruturas centrais do rate limiter.
package domain

// Scope identifica se um contador pertence a um usuário autenticado ou a um IP.
type Scope string

const (
	ScopeUser Scope = "user"
	ScopeIP   Scope = "ip"
)

// UnknownIP is used when no client address can be derived from a request.
// Every unattributable client shares this one identity.
const UnknownIP = "unknown"

// Identity is the subject a request is counted against.
type Identity struct {
	Scope Scope
	Value string
}

func UserIdentity(userID string) Identity {
	return Identity{Scope: ScopeUser, Value: userID}
}

func IPIdentity(addr string) Identity {
	if addr == "" {
		addr = UnknownIP
	}
	return Identity{Scope: ScopeIP, Value: addr}
}

func (i Identity) IsUser() bool {
	return i.Scope == ScopeUser && i.Value != ""
}

func (i Identity) String() string {
	return string(i.Scope) + ":" + i.Value
}
