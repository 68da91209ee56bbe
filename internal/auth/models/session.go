package models

import (
	"time"

	"github.com/google/uuid"

	"castellan/internal/proto"
)

// Status is the lifecycle state of an authentication negotiation.
type Status int

const (
	// StatusInProgress means identity is claimed and credentials are awaited.
	StatusInProgress Status = iota
	// StatusSuccess is terminal; a token has been issued.
	StatusSuccess
	// StatusDenied is terminal; no token will be issued on this session.
	StatusDenied
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Session is the server-side state record of one authentication negotiation.
// It is bound to an opaque identifier, never to a transport cookie; cookie
// handling is a transport concern. A session is single-use: once terminal it
// can never transition again.
//
// Session holds no secrets. Credential verification is delegated; the record
// only tracks which mechanisms remain to be satisfied.
type Session struct {
	ID        uuid.UUID
	Principal string
	AppID     *string

	// Remaining lists the mechanisms still required before a token can be
	// issued. Satisfied mechanisms become session claims on the token.
	Remaining []proto.AuthAllowed
	Satisfied []proto.AuthAllowed

	Status Status
	Reason string // generic denial reason, set when Status is StatusDenied
	Token  *proto.UserAuthToken

	// Device display metadata for session visibility, e.g. "Chrome on macOS".
	Device string

	StartedAt  time.Time
	LastStepAt time.Time
}

// IsTerminal reports whether the negotiation has resolved.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusSuccess || s.Status == StatusDenied
}

// ExpiredAt reports whether an unresolved session has been inactive past the
// given window at time now. Terminal sessions do not expire.
func (s *Session) ExpiredAt(now time.Time, window time.Duration) bool {
	return s.Status == StatusInProgress && now.After(s.LastStepAt.Add(window))
}

// Deny resolves the session as denied. Returns false if already terminal.
func (s *Session) Deny(reason string) bool {
	if s.IsTerminal() {
		return false
	}
	s.Status = StatusDenied
	s.Reason = reason
	s.Token = nil
	return true
}

// Succeed resolves the session with an issued token. Returns false if the
// session is already terminal or mechanisms remain unsatisfied.
func (s *Session) Succeed(token proto.UserAuthToken) bool {
	if s.IsTerminal() || len(s.Remaining) > 0 {
		return false
	}
	s.Status = StatusSuccess
	s.Token = &token
	return true
}

// SatisfyMechanism moves a mechanism from the remaining to the satisfied set.
// Returns false if the mechanism is not currently required.
func (s *Session) SatisfyMechanism(m proto.AuthAllowed) bool {
	for i, r := range s.Remaining {
		if r == m {
			s.Remaining = append(s.Remaining[:i], s.Remaining[i+1:]...)
			s.Satisfied = append(s.Satisfied, m)
			return true
		}
	}
	return false
}

// Requires reports whether the mechanism is still required.
func (s *Session) Requires(m proto.AuthAllowed) bool {
	for _, r := range s.Remaining {
		if r == m {
			return true
		}
	}
	return false
}
