// Package service implements the marketplace ledger operations on top of a
// repository.Store. Every operation runs in exactly one unit of work, checks
// all of its preconditions before staging any write, and returns one of the
// domain error kinds when it refuses.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/pkg/logger"
	"github.com/utafrali/pointledger/pkg/tracing"
)

// Ledger is the marketplace service: accounts, catalog, purchases, ratings
// and the treasury.
type Ledger struct {
	store   repository.Store
	price   domain.PointPrice
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	now   func() time.Time
	newID func() string
}

// NewLedger creates a ledger selling points at pointPrice base units each.
// metrics may be nil.
func NewLedger(store repository.Store, pointPrice int64, metrics *Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		price:   domain.PointPrice(pointPrice),
		metrics: metrics,
		logger:  logger,
		tracer:  tracing.Tracer("github.com/utafrali/pointledger/internal/service"),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// PointPrice returns the configured price of one point in base units.
func (s *Ledger) PointPrice() int64 {
	return int64(s.price)
}

// Ping reports whether the underlying store is reachable.
func (s *Ledger) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// begin opens a span for op. The returned function must be called with the
// operation's final error.
func (s *Ledger) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.observe(op, start, err)
	}
}

func (s *Ledger) log(ctx context.Context) *slog.Logger {
	return logger.WithContext(ctx, s.logger)
}

// requireAccount loads address and insists on kind want.
func requireAccount(ctx context.Context, tx repository.Tx, address string, want domain.Kind) (*domain.Account, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}
	acct, err := tx.AccountByAddress(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NotRegisteredError(address, want)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct.Kind != want {
		return nil, domain.NotRegisteredError(address, want)
	}
	return acct, nil
}

// lookupAccount returns the account at address, or nil when none exists.
func lookupAccount(ctx context.Context, tx repository.Tx, address string) (*domain.Account, error) {
	acct, err := tx.AccountByAddress(ctx, address)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

func loadProduct(ctx context.Context, tx repository.Tx, id int64) (*domain.Product, error) {
	p, err := tx.ProductByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ProductNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	return p, nil
}
