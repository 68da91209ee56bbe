// Package service implements the directory operations over a pluggable
// entry store. All filters pass through canonicalization before reaching
// the store, so store implementations only ever see normalized terms.
package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"castellan/internal/directory/schema"
	"castellan/internal/identity"
	"castellan/internal/platform/metrics"
	"castellan/internal/proto"
)

// Store is the entry persistence backend.
type Store interface {
	Create(ctx context.Context, entries []proto.Entry) error
	Search(ctx context.Context, f proto.Filter) ([]proto.Entry, error)
	SearchRecycled(ctx context.Context, f proto.Filter) ([]proto.Entry, error)
	Delete(ctx context.Context, f proto.Filter) (int, error)
	Modify(ctx context.Context, f proto.Filter, ml proto.ModifyList) (int, error)
	Revive(ctx context.Context, f proto.Filter) (int, error)
	FindByAttrValue(ctx context.Context, attr, value string) ([]proto.Entry, error)
	CheckConsistency(ctx context.Context) []proto.ConsistencyResult
}

// Service executes directory operations.
type Service struct {
	store     Store
	validator schema.Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
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

// New creates the directory service.
func New(store Store, validator schema.Validator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer("castellan/directory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// prepareFilter canonicalizes a caller-supplied filter and resolves any
// SelfUUID placeholder against the authenticated caller. A filter that
// reduces to the always-false form is rejected before it reaches the store.
func (s *Service) prepareFilter(ctx context.Context, f proto.Filter) (proto.Filter, error) {
	canon, err := f.Canonicalize()
	if err != nil {
		return proto.Filter{}, err
	}
	if canon.IsAlwaysFalse() {
		return proto.Filter{}, proto.NewSchemaViolation(proto.SchemaError{Kind: proto.SchemaEmptyFilter})
	}
	if canon.ContainsSelf() {
		token, ok := identity.FromContext(ctx)
		if !ok {
			return proto.Filter{}, proto.NewOperationError(proto.OpFilterUUIDResolution)
		}
		canon, err = canon.ResolveSelf(token.UUID).Canonicalize()
		if err != nil {
			return proto.Filter{}, err
		}
	}
	return canon, nil
}

// Search returns the live entries matching the filter.
func (s *Service) Search(ctx context.Context, f proto.Filter) ([]proto.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Search")
	defer span.End()

	canon, err := s.prepareFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Search(ctx, canon)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("directory.matches", len(entries)))
	if s.metrics != nil {
		s.metrics.SearchesTotal.WithLabelValues("live").Inc()
	}
	s.logger.DebugContext(ctx, "search complete",
		"filter", canon.String(),
		"matches", len(entries),
	)
	return entries, nil
}

// Create validates and inserts a batch of entries. The batch is atomic: if
// any entry fails validation, nothing is inserted. Entries without a uuid
// attribute are assigned one.
func (s *Service) Create(ctx context.Context, entries []proto.Entry) error {
	ctx, span := s.tracer.Start(ctx, "directory.Create")
	defer span.End()

	if len(entries) == 0 {
		return proto.NewOperationError(proto.OpEmptyRequest)
	}

	prepared := make([]proto.Entry, 0, len(entries))
	for _, e := range entries {
		e = e.Clone()
		if !e.Has(proto.AttrUUID) {
			e.Attrs[proto.AttrUUID] = []string{uuid.NewString()}
		}
		if se := s.validator.Validate(e); se != nil {
			return proto.NewSchemaViolation(*se)
		}
		prepared = append(prepared, e)
	}

	if err := s.store.Create(ctx, prepared); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesCreated.Add(float64(len(prepared)))
	}
	s.logger.InfoContext(ctx, "entries created", "count", len(prepared))
	return nil
}

// Delete moves the matching live entries into the recycle set. Matching
// nothing is an error: silently deleting nothing hides caller mistakes.
func (s *Service) Delete(ctx context.Context, f proto.Filter) error {
	ctx, span := s.tracer.Start(ctx, "directory.Delete")
	defer span.End()

	canon, err := s.prepareFilter(ctx, f)
	if err != nil {
		return err
	}
	n, err := s.store.Delete(ctx, canon)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesRecycled.Add(float64(n))
	}
	s.logger.InfoContext(ctx, "entries recycled",
		"filter", canon.String(),
		"count", n,
	)
	return nil
}

// Modify applies the modification list to every matching live entry.
func (s *Service) Modify(ctx context.Context, f proto.Filter, ml proto.ModifyList) error {
	ctx, span := s.tracer.Start(ctx, "directory.Modify")
	defer span.End()

	if len(ml.Mods) == 0 {
		return proto.NewOperationError(proto.OpEmptyRequest)
	}
	canon, err := s.prepareFilter(ctx, f)
	if err != nil {
		return err
	}
	n, err := s.store.Modify(ctx, canon, ml)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesModified.Add(float64(n))
	}
	s.logger.InfoContext(ctx, "entries modified",
		"filter", canon.String(),
		"count", n,
	)
	return nil
}

// SearchRecycled returns the recycled entries matching the filter.
func (s *Service) SearchRecycled(ctx context.Context, f proto.Filter) ([]proto.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "directory.SearchRecycled")
	defer span.End()

	canon, err := s.prepareFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.SearchRecycled(ctx, canon)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SearchesTotal.WithLabelValues("recycled").Inc()
	}
	return entries, nil
}

// Revive restores matching recycled entries to the live set.
func (s *Service) Revive(ctx context.Context, f proto.Filter) error {
	ctx, span := s.tracer.Start(ctx, "directory.Revive")
	defer span.End()

	canon, err := s.prepareFilter(ctx, f)
	if err != nil {
		return err
	}
	n, err := s.store.Revive(ctx, canon)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.EntriesRevived.Add(float64(n))
	}
	s.logger.InfoContext(ctx, "entries revived",
		"filter", canon.String(),
		"count", n,
	)
	return nil
}

// Whoami resolves the authenticated caller to their directory entry.
func (s *Service) Whoami(ctx context.Context) (proto.Entry, *proto.UserAuthToken, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Whoami")
	defer span.End()

	token, ok := identity.FromContext(ctx)
	if !ok {
		return proto.Entry{}, nil, proto.NewOperationError(proto.OpNotAuthenticated)
	}
	entries, err := s.store.FindByAttrValue(ctx, proto.AttrUUID, token.UUID)
	if err != nil {
		return proto.Entry{}, nil, err
	}
	if len(entries) == 0 {
		return proto.Entry{}, nil, proto.NewOperationError(proto.OpNoMatchingEntries)
	}
	return entries[0], token, nil
}

// VerifyConsistency runs the structural-integrity checks. A non-nil error
// carries the failing results; callers that want the full report inspect
// the returned slice either way.
func (s *Service) VerifyConsistency(ctx context.Context) ([]proto.ConsistencyResult, error) {
	ctx, span := s.tracer.Start(ctx, "directory.VerifyConsistency")
	defer span.End()

	results := s.store.CheckConsistency(ctx)
	for _, r := range results {
		if !r.Passed() {
			s.logger.WarnContext(ctx, "consistency check failed", "fault", r.Err.Error())
			return results, proto.NewConsistencyFailure(results)
		}
	}
	return results, nil
}
