package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castellan/internal/proto"
)

func TestSessionLifecycle(t *testing.T) {
	s := Session{
		Principal: "admin",
		Remaining: []proto.AuthAllowed{proto.AllowedPassword},
		Status:    StatusInProgress,
	}

	assert.False(t, s.IsTerminal())
	assert.True(t, s.Requires(proto.AllowedPassword))
	assert.False(t, s.Requires(proto.AllowedAnonymous))

	// Success is impossible while mechanisms remain.
	assert.False(t, s.Succeed(proto.UserAuthToken{}))

	require.True(t, s.SatisfyMechanism(proto.AllowedPassword))
	assert.False(t, s.SatisfyMechanism(proto.AllowedPassword))
	assert.Empty(t, s.Remaining)
	assert.Equal(t, []proto.AuthAllowed{proto.AllowedPassword}, s.Satisfied)

	require.True(t, s.Succeed(proto.UserAuthToken{Name: "admin"}))
	assert.True(t, s.IsTerminal())

	// Terminal is terminal.
	assert.False(t, s.Deny("nope"))
	assert.False(t, s.Succeed(proto.UserAuthToken{}))
	assert.Equal(t, StatusSuccess, s.Status)
}

func TestSessionDenyClearsToken(t *testing.T) {
	s := Session{Status: StatusInProgress, Token: &proto.UserAuthToken{Name: "x"}}
	require.True(t, s.Deny("denied"))
	assert.Nil(t, s.Token)
	assert.Equal(t, "denied", s.Reason)
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()
	s := Session{Status: StatusInProgress, LastStepAt: now}

	assert.False(t, s.ExpiredAt(now.Add(4*time.Minute), 5*time.Minute))
	assert.True(t, s.ExpiredAt(now.Add(6*time.Minute), 5*time.Minute))

	s.Status = StatusDenied
	assert.False(t, s.ExpiredAt(now.Add(time.Hour), 5*time.Minute))
}
