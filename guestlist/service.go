package guestlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eringen/folio/identity"
)

const tracerName = "github.com/eringen/folio/guestlist"

// Service enforces who may add, edit and delete guests, and when. It keeps no
// state of its own between calls.
type Service struct {
	repo       Repository
	adminEmail string
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService returns a Service storing guests in repo. adminEmail is the one
// email allowed to moderate; when empty nobody is.
func NewService(repo Repository, adminEmail string, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		adminEmail: adminEmail,
		now:        time.Now,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns guests newest first. The caller must be signed in.
func (s *Service) List(ctx context.Context, caller *identity.Identity, opts ListOptions) ([]Guest, error) {
	ctx, span := s.tracer.Start(ctx, "guestlist.List")
	defer span.End()

	if !signedIn(caller) {
		return nil, ErrUnauthenticated
	}
	f, ok := opts.filter()
	if !ok {
		return nil, fmt.Errorf("%w: page must be at least 1 and per_page between 1 and %d", ErrValidation, MaxPerPage)
	}
	guests, err := s.repo.ListGuests(ctx, f)
	if err != nil {
		return nil, s.internal(ctx, span, "list guests", err)
	}
	if guests == nil {
		guests = []Guest{}
	}
	span.SetAttributes(attribute.Int("guestlist.count", len(guests)))
	return guests, nil
}

// Add records a guest on behalf of caller. Each identity may add one guest
// per Window.
func (s *Service) Add(ctx context.Context, caller *identity.Identity, name string) (Guest, error) {
	ctx, span := s.tracer.Start(ctx, "guestlist.Add")
	defer span.End()

	if !signedIn(caller) {
		return Guest{}, ErrUnauthenticated
	}
	name = NormalizeName(name)
	if name == "" {
		return Guest{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	addedBy := caller.Handle()
	now := s.now().UTC()
	span.SetAttributes(attribute.String("guestlist.added_by", addedBy))

	latest, err := s.repo.LatestGuestBy(ctx, addedBy)
	switch {
	case err == nil:
		if now.Sub(latest.CreatedAt) < Window {
			span.SetAttributes(attribute.Bool("guestlist.rate_limited", true))
			return Guest{}, ErrRateLimited
		}
	case errors.Is(err, ErrNotFound):
	default:
		return Guest{}, s.internal(ctx, span, "find latest guest", err)
	}

	g, err := s.repo.CreateGuest(ctx, Guest{Name: name, AddedBy: addedBy, CreatedAt: now}, now.Add(-Window))
	if errors.Is(err, ErrRateLimited) {
		// Lost a race with a concurrent Add by the same identity.
		span.SetAttributes(attribute.Bool("guestlist.rate_limited", true))
		return Guest{}, ErrRateLimited
	}
	if err != nil {
		return Guest{}, s.internal(ctx, span, "create guest", err)
	}
	s.logger.InfoContext(ctx, "guest added", "id", g.ID, "added_by", addedBy)
	return g, nil
}

// Update renames guest id. Only the admin may do this.
func (s *Service) Update(ctx context.Context, caller *identity.Identity, id int64, name string) (Guest, error) {
	ctx, span := s.tracer.Start(ctx, "guestlist.Update", trace.WithAttributes(attribute.Int64("guestlist.id", id)))
	defer span.End()

	if !s.isAdmin(caller) {
		return Guest{}, ErrForbidden
	}
	name = NormalizeName(name)
	if name == "" {
		return Guest{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if id <= 0 {
		return Guest{}, ErrNotFound
	}

	g, err := s.repo.UpdateGuestName(ctx, id, name)
	if errors.Is(err, ErrNotFound) {
		return Guest{}, ErrNotFound
	}
	if err != nil {
		return Guest{}, s.internal(ctx, span, "update guest", err)
	}
	s.logger.InfoContext(ctx, "guest updated", "id", id)
	return g, nil
}

// Delete removes guest id. Only the admin may do this.
func (s *Service) Delete(ctx context.Context, caller *identity.Identity, id int64) error {
	ctx, span := s.tracer.Start(ctx, "guestlist.Delete", trace.WithAttributes(attribute.Int64("guestlist.id", id)))
	defer span.End()

	if !s.isAdmin(caller) {
		return ErrForbidden
	}
	if id <= 0 {
		return ErrNotFound
	}

	err := s.repo.DeleteGuest(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.internal(ctx, span, "delete guest", err)
	}
	s.logger.InfoContext(ctx, "guest deleted", "id", id)
	return nil
}

func (s *Service) isAdmin(caller *identity.Identity) bool {
	return caller != nil && caller.IsAdmin(s.adminEmail)
}

// internal logs the cause of a persistence failure and hides it from the caller.
func (s *Service) internal(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	s.logger.ErrorContext(ctx, "guestlist: "+op, "error", err)
	return ErrInternal
}

func signedIn(caller *identity.Identity) bool {
	return caller != nil && !caller.IsZero()
}
