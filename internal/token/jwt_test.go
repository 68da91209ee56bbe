package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castellan/internal/proto"
)

func testUAT() proto.UserAuthToken {
	return proto.UserAuthToken{
		Name:        "admin",
		DisplayName: "Administrator",
		UUID:        uuid.NewString(),
		Groups:      []proto.Group{{Name: "idm_admins", UUID: uuid.NewString()}},
		Claims:      []proto.Claim{{Name: "auth_Password", UUID: uuid.NewString()}},
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService("test-key", "castellan", time.Hour)
	sessionID := uuid.New()
	uat := testUAT()

	raw, err := svc.Sign(ctx, sessionID, uat)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, gotSession, err := svc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, uat, *got)
	assert.Equal(t, sessionID, gotSession)
}

func TestVerifyWrongKey(t *testing.T) {
	ctx := context.Background()
	signer := NewService("key-one", "castellan", time.Hour)
	verifier := NewService("key-two", "castellan", time.Hour)

	raw, err := signer.Sign(ctx, uuid.New(), testUAT())
	require.NoError(t, err)

	_, _, err = verifier.Verify(ctx, raw)
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNotAuthenticated))
}

func TestVerifyWrongIssuer(t *testing.T) {
	ctx := context.Background()
	signer := NewService("test-key", "someone-else", time.Hour)
	verifier := NewService("test-key", "castellan", time.Hour)

	raw, err := signer.Sign(ctx, uuid.New(), testUAT())
	require.NoError(t, err)

	_, _, err = verifier.Verify(ctx, raw)
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNotAuthenticated))
}

func TestVerifyExpired(t *testing.T) {
	ctx := context.Background()
	issued := time.Now()
	svc := NewService("test-key", "castellan", time.Hour, WithClock(func() time.Time { return issued }))

	raw, err := svc.Sign(ctx, uuid.New(), testUAT())
	require.NoError(t, err)

	late := NewService("test-key", "castellan", time.Hour, WithClock(func() time.Time {
		return issued.Add(2 * time.Hour)
	}))
	_, _, err = late.Verify(ctx, raw)
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNotAuthenticated))
}

func TestVerifyGarbage(t *testing.T) {
	svc := NewService("test-key", "castellan", time.Hour)
	_, _, err := svc.Verify(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, proto.NewOperationError(proto.OpNotAuthenticated))
}
