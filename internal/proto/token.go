package proto

import (
	"fmt"
	"strings"
)

// Group is a membership reference carried inside a UserAuthToken.
type Group struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Claim is an ephemeral, session-scoped attribute granted at authentication.
type Claim struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Application is an optional application context a negotiation was opened
// under.
type Application struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// UserAuthToken is the identity assertion issued as the terminal artifact of
// a successful authentication. It is immutable and bounded by the session it
// was issued for; authorization decisions in every other operation consume it
// as implicit context.
type UserAuthToken struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"displayname"`
	UUID        string       `json:"uuid"`
	Application *Application `json:"application"`
	Groups      []Group      `json:"groups"`
	Claims      []Claim      `json:"claims"`
}

// String renders a multi-line human-readable summary of the token.
func (t UserAuthToken) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", t.Name)
	fmt.Fprintf(&b, "display: %s\n", t.DisplayName)
	fmt.Fprintf(&b, "uuid: %s\n", t.UUID)
	fmt.Fprintf(&b, "groups: %v\n", t.Groups)
	fmt.Fprintf(&b, "claims: %v", t.Claims)
	return b.String()
}

// MemberOf reports whether the token asserts membership of the named group.
func (t UserAuthToken) MemberOf(name string) bool {
	for _, g := range t.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}
