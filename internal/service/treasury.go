package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
)

// Withdraw pays the whole treasury balance out to its owner and returns the
// amount transferred. An empty treasury yields 0 and records nothing.
func (s *Ledger) Withdraw(ctx context.Context, caller string) (amount int64, err error) {
	ctx, done := s.begin(ctx, "Withdraw", attribute.String("ledger.caller", caller))
	defer func() { done(err) }()

	if err := domain.ValidateAddress(caller); err != nil {
		return 0, err
	}

	var withdrawal *domain.Withdrawal
	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		t, err := tx.Treasury(ctx)
		if err != nil {
			return fmt.Errorf("load treasury: %w", err)
		}
		if !t.IsOwner(caller) {
			return domain.UnauthorizedError("only the treasury owner can withdraw")
		}

		amount = t.Drain()
		if amount == 0 {
			return nil
		}
		if err := tx.UpdateTreasury(ctx, t); err != nil {
			return fmt.Errorf("update treasury: %w", err)
		}
		withdrawal = &domain.Withdrawal{
			ID:        s.newID(),
			Recipient: caller,
			Amount:    amount,
			CreatedAt: s.now(),
		}
		if err := tx.CreateWithdrawal(ctx, withdrawal); err != nil {
			return fmt.Errorf("record withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if withdrawal != nil {
		s.metrics.flow("withdrawn", amount)
		s.log(ctx).InfoContext(ctx, "treasury withdrawn",
			slog.String("withdrawal_id", withdrawal.ID),
			slog.String("recipient", withdrawal.Recipient),
			slog.Int64("amount", amount),
		)
	}
	return amount, nil
}

// GetTreasury returns the treasury owner, balance and running totals.
func (s *Ledger) GetTreasury(ctx context.Context) (t domain.Treasury, err error) {
	ctx, done := s.begin(ctx, "GetTreasury")
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		got, err := tx.Treasury(ctx)
		if err != nil {
			return fmt.Errorf("load treasury: %w", err)
		}
		t = *got
		return nil
	})
	if err != nil {
		return domain.Treasury{}, err
	}
	return t, nil
}

// TreasuryReport is a treasury snapshot together with what its owner has
// been paid, both read from the same view.
type TreasuryReport struct {
	domain.Treasury
	OwnerPayoutBalance int64
}

// GetTreasuryReport returns the treasury and the owner's payout balance as
// of a single point in time.
func (s *Ledger) GetTreasuryReport(ctx context.Context) (report TreasuryReport, err error) {
	ctx, done := s.begin(ctx, "GetTreasuryReport")
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		got, err := tx.Treasury(ctx)
		if err != nil {
			return fmt.Errorf("load treasury: %w", err)
		}
		paid, err := tx.WithdrawnTo(ctx, got.Owner)
		if err != nil {
			return fmt.Errorf("payout balance: %w", err)
		}
		report = TreasuryReport{Treasury: *got, OwnerPayoutBalance: paid}
		return nil
	})
	if err != nil {
		return TreasuryReport{}, err
	}
	return report, nil
}

// PayoutBalance returns the total withdrawn to address so far.
func (s *Ledger) PayoutBalance(ctx context.Context, address string) (total int64, err error) {
	ctx, done := s.begin(ctx, "PayoutBalance")
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		total, err = tx.WithdrawnTo(ctx, address)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("payout balance: %w", err)
	}
	return total, nil
}
