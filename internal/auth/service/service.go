package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CredentialVerifier,TokenSource

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"castellan/internal/auth/models"
	"castellan/internal/platform/metrics"
	"castellan/internal/proto"
)

// genericDenialReason is the only reason string ever sent to clients. Which
// part of a multi-mechanism check failed must never leak; distinguishing
// "unknown user" from "wrong password" is a credential-enumeration side
// channel.
const genericDenialReason = "authentication denied"

// CredentialVerifier is the collaborator that holds and checks secrets. The
// state machine itself never sees a password hash.
type CredentialVerifier interface {
	// RequiredMechanisms names every mechanism currently acceptable for the
	// principal. An error means the principal is unknown or locked.
	RequiredMechanisms(ctx context.Context, principal string) ([]proto.AuthAllowed, error)
	// Verify checks one supplied credential against the principal's stored
	// material. It reports only pass or fail.
	Verify(ctx context.Context, principal string, cred proto.AuthCredential) bool
}

// TokenSource builds the identity assertion issued at Success.
type TokenSource interface {
	BuildToken(ctx context.Context, principal string, appID *string, claims []proto.Claim) (*proto.UserAuthToken, error)
}

// SessionStore persists negotiation state between steps.
type SessionStore interface {
	Create(ctx context.Context, sess models.Session) error
	Advance(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (models.Session, error)
	Count(ctx context.Context) int
}

// Service is the authentication negotiation state machine. It enforces legal
// step ordering and shapes responses; verifying secrets and resolving entries
// are delegated to collaborators.
type Service struct {
	sessions SessionStore
	verifier CredentialVerifier
	tokens   TokenSource
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger injects a logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the negotiation service.
func New(sessions SessionStore, verifier CredentialVerifier, tokens TokenSource, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		verifier: verifier,
		tokens:   tokens,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Step dispatches one negotiation step. Init opens a fresh session and
// ignores any supplied identifier; Creds requires the identifier issued at
// Init.
func (s *Service) Step(ctx context.Context, sessionID *uuid.UUID, step proto.AuthStep, device string) (uuid.UUID, proto.AuthState, error) {
	switch step.Kind {
	case proto.StepInit:
		id, state := s.begin(ctx, step.Name, step.AppID, device)
		return id, state, nil
	case proto.StepCreds:
		if sessionID == nil {
			return uuid.Nil, proto.AuthState{}, proto.NewOperationError(proto.OpInvalidSessionState)
		}
		state, err := s.submitCreds(ctx, *sessionID, step.Creds)
		return *sessionID, state, err
	default:
		return uuid.Nil, proto.AuthState{}, proto.NewOperationErrorText(proto.OpInvalidAuthState, "unknown auth step")
	}
}

// begin allocates a session identifier and resolves the acceptable mechanism
// set for the claimed principal. Unknown or locked principals are denied
// immediately and no session is stored: any further step on the identifier
// fails with InvalidSessionState.
func (s *Service) begin(ctx context.Context, principal string, appID *string, device string) (uuid.UUID, proto.AuthState) {
	id := uuid.New()
	if s.metrics != nil {
		s.metrics.AuthNegotiationsStarted.Inc()
	}

	mechanisms, err := s.verifier.RequiredMechanisms(ctx, principal)
	if err != nil || len(mechanisms) == 0 {
		s.logger.InfoContext(ctx, "auth init denied",
			"principal", principal,
			"error", err,
		)
		s.recordDenied()
		return id, proto.DeniedState(genericDenialReason)
	}

	now := s.now()
	sess := models.Session{
		ID:         id,
		Principal:  principal,
		AppID:      appID,
		Remaining:  mechanisms,
		Status:     models.StatusInProgress,
		Device:     device,
		StartedAt:  now,
		LastStepAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		s.logger.ErrorContext(ctx, "failed to store auth session", "error", err)
		s.recordDenied()
		return id, proto.DeniedState(genericDenialReason)
	}

	s.logger.InfoContext(ctx, "auth negotiation opened",
		"session_id", id,
		"principal", principal,
		"mechanisms", len(mechanisms),
	)
	s.updateSessionGauge(ctx)
	return id, proto.ContinueState(mechanisms...)
}

// submitCreds advances an open negotiation with supplied credentials. The
// store guarantees at most one transition in flight per identifier, so two
// racing submissions can never both reach Success.
func (s *Service) submitCreds(ctx context.Context, id uuid.UUID, creds []proto.AuthCredential) (proto.AuthState, error) {
	sess, err := s.sessions.Advance(ctx, id, func(sess *models.Session) error {
		for _, cred := range creds {
			mech := cred.Mechanism()
			if !sess.Requires(mech) || !s.verifier.Verify(ctx, sess.Principal, cred) {
				sess.Deny(genericDenialReason)
				return nil
			}
			sess.SatisfyMechanism(mech)
		}
		if len(sess.Remaining) > 0 {
			return nil // more factors required, stay in Continue
		}

		token, err := s.tokens.BuildToken(ctx, sess.Principal, sess.AppID, mechanismClaims(sess.Satisfied))
		if err != nil {
			s.logger.ErrorContext(ctx, "token issue failed",
				"session_id", sess.ID,
				"error", err,
			)
			return proto.NewOperationError(proto.OpBackend)
		}
		sess.Succeed(*token)
		return nil
	})
	if err != nil {
		return proto.AuthState{}, err
	}

	s.updateSessionGauge(ctx)
	switch sess.Status {
	case models.StatusSuccess:
		if s.metrics != nil {
			s.metrics.AuthSuccesses.Inc()
		}
		s.logger.InfoContext(ctx, "auth negotiation succeeded",
			"session_id", id,
			"principal", sess.Principal,
			"device", sess.Device,
		)
		return proto.SuccessState(*sess.Token), nil
	case models.StatusDenied:
		s.recordDenied()
		s.logger.InfoContext(ctx, "auth negotiation denied",
			"session_id", id,
			"principal", sess.Principal,
		)
		return proto.DeniedState(sess.Reason), nil
	default:
		return proto.ContinueState(sess.Remaining...), nil
	}
}

// mechanismClaims converts satisfied mechanisms into session-scoped claims.
func mechanismClaims(satisfied []proto.AuthAllowed) []proto.Claim {
	claims := make([]proto.Claim, 0, len(satisfied))
	for _, m := range satisfied {
		claims = append(claims, proto.Claim{
			Name: "auth_" + m.String(),
			UUID: uuid.NewString(),
		})
	}
	return claims
}

func (s *Service) recordDenied() {
	if s.metrics != nil {
		s.metrics.AuthFailures.Inc()
	}
}

func (s *Service) updateSessionGauge(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.ActiveAuthSessions.Set(float64(s.sessions.Count(ctx)))
	}
}
