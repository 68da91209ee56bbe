package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"castellan/internal/proto"
)

func (s *ServiceSuite) TestPasswordNegotiation() {
	ctx := context.Background()

	s.T().Run("init then correct password succeeds", func(t *testing.T) {
		s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
			Return([]proto.AuthAllowed{proto.AllowedPassword}, nil)

		id, state, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "Chrome on Linux")
		require.NoError(t, err)
		assert.Equal(t, proto.StateContinue, state.Kind)
		assert.Equal(t, []proto.AuthAllowed{proto.AllowedPassword}, state.Allowed)

		cred := proto.PasswordCredential("correct horse")
		s.mockVerifier.EXPECT().Verify(ctx, "admin", cred).Return(true)
		s.mockTokens.EXPECT().BuildToken(ctx, "admin", gomock.Nil(), gomock.Any()).
			Return(&proto.UserAuthToken{Name: "admin", UUID: uuid.NewString()}, nil)

		_, state, err = s.service.Step(ctx, &id, proto.CredsStep(cred), "")
		require.NoError(t, err)
		require.Equal(t, proto.StateSuccess, state.Kind)
		require.NotNil(t, state.Token)
		assert.Equal(t, "admin", state.Token.Name)
	})

	s.T().Run("wrong password denies with a generic reason", func(t *testing.T) {
		s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
			Return([]proto.AuthAllowed{proto.AllowedPassword}, nil)

		id, _, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "")
		require.NoError(t, err)

		cred := proto.PasswordCredential("wrong")
		s.mockVerifier.EXPECT().Verify(ctx, "admin", cred).Return(false)

		_, state, err := s.service.Step(ctx, &id, proto.CredsStep(cred), "")
		require.NoError(t, err)
		assert.Equal(t, proto.StateDenied, state.Kind)
		assert.Equal(t, genericDenialReason, state.Reason)
	})
}

func (s *ServiceSuite) TestUnknownPrincipalDenied() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "ghost").
		Return(nil, errors.New("unknown principal"))

	id, state, err := s.service.Step(ctx, nil, proto.InitStep("ghost", nil), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), proto.StateDenied, state.Kind)
	assert.Equal(s.T(), genericDenialReason, state.Reason)

	// No session was opened; the identifier cannot be advanced.
	_, _, err = s.service.Step(ctx, &id, proto.CredsStep(proto.PasswordCredential("x")), "")
	assert.ErrorIs(s.T(), err, proto.NewOperationError(proto.OpInvalidSessionState))
}

func (s *ServiceSuite) TestAnonymousNegotiation() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "anonymous").
		Return([]proto.AuthAllowed{proto.AllowedAnonymous}, nil)

	id, state, err := s.service.Step(ctx, nil, proto.InitStep("anonymous", nil), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), proto.StateContinue, state.Kind)

	cred := proto.AnonymousCredential()
	s.mockVerifier.EXPECT().Verify(ctx, "anonymous", cred).Return(true)
	s.mockTokens.EXPECT().BuildToken(ctx, "anonymous", gomock.Nil(), gomock.Any()).
		Return(&proto.UserAuthToken{Name: "anonymous"}, nil)

	_, state, err = s.service.Step(ctx, &id, proto.CredsStep(cred), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), proto.StateSuccess, state.Kind)
}

func (s *ServiceSuite) TestMultiMechanismContinues() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
		Return([]proto.AuthAllowed{proto.AllowedPassword, proto.AllowedAnonymous}, nil)

	id, state, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "")
	require.NoError(s.T(), err)
	assert.Len(s.T(), state.Allowed, 2)

	cred := proto.PasswordCredential("correct horse")
	s.mockVerifier.EXPECT().Verify(ctx, "admin", cred).Return(true)

	_, state, err = s.service.Step(ctx, &id, proto.CredsStep(cred), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), proto.StateContinue, state.Kind)
	assert.Equal(s.T(), []proto.AuthAllowed{proto.AllowedAnonymous}, state.Allowed)
}

func (s *ServiceSuite) TestNotRequiredMechanismDenied() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
		Return([]proto.AuthAllowed{proto.AllowedPassword}, nil)

	id, _, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "")
	require.NoError(s.T(), err)

	// An anonymous credential against a password-only session is an
	// immediate denial regardless of verification.
	_, state, err := s.service.Step(ctx, &id, proto.CredsStep(proto.AnonymousCredential()), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), proto.StateDenied, state.Kind)
}

func (s *ServiceSuite) TestTerminalSessionRejectsFurtherSteps() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
		Return([]proto.AuthAllowed{proto.AllowedPassword}, nil)

	id, _, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "")
	require.NoError(s.T(), err)

	cred := proto.PasswordCredential("wrong")
	s.mockVerifier.EXPECT().Verify(ctx, "admin", cred).Return(false)
	_, state, err := s.service.Step(ctx, &id, proto.CredsStep(cred), "")
	require.NoError(s.T(), err)
	require.Equal(s.T(), proto.StateDenied, state.Kind)

	_, _, err = s.service.Step(ctx, &id, proto.CredsStep(proto.PasswordCredential("right")), "")
	assert.ErrorIs(s.T(), err, proto.NewOperationError(proto.OpInvalidSessionState))
}

func (s *ServiceSuite) TestTokenIssueFailure() {
	ctx := context.Background()

	s.mockVerifier.EXPECT().RequiredMechanisms(ctx, "admin").
		Return([]proto.AuthAllowed{proto.AllowedPassword}, nil)

	id, _, err := s.service.Step(ctx, nil, proto.InitStep("admin", nil), "")
	require.NoError(s.T(), err)

	cred := proto.PasswordCredential("correct horse")
	s.mockVerifier.EXPECT().Verify(ctx, "admin", cred).Return(true)
	s.mockTokens.EXPECT().BuildToken(ctx, "admin", gomock.Nil(), gomock.Any()).
		Return(nil, errors.New("entry vanished"))

	_, _, err = s.service.Step(ctx, &id, proto.CredsStep(cred), "")
	assert.ErrorIs(s.T(), err, proto.NewOperationError(proto.OpBackend))
}

func (s *ServiceSuite) TestCredsWithoutSessionID() {
	_, _, err := s.service.Step(context.Background(), nil, proto.CredsStep(proto.AnonymousCredential()), "")
	assert.ErrorIs(s.T(), err, proto.NewOperationError(proto.OpInvalidSessionState))
}

func (s *ServiceSuite) TestMechanismClaims() {
	claims := mechanismClaims([]proto.AuthAllowed{proto.AllowedPassword})
	require.Len(s.T(), claims, 1)
	assert.Equal(s.T(), "auth_Password", claims[0].Name)
	assert.NotEmpty(s.T(), claims[0].UUID)
}
