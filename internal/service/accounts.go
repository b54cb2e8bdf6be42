package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
)

// UserInfo is the public view of a user account. Unregistered addresses get
// the zero value with Registered false.
type UserInfo struct {
	Address            string  `json:"address"`
	Points             int64   `json:"points"`
	Registered         bool    `json:"registered"`
	ReviewedProductIDs []int64 `json:"reviewed_product_ids"`
}

// CompanyInfo is the public view of a company account.
type CompanyInfo struct {
	Address    string `json:"address"`
	Points     int64  `json:"points"`
	Registered bool   `json:"registered"`
}

// RegisterUser opens a user account for caller with the user grant.
func (s *Ledger) RegisterUser(ctx context.Context, caller string) (*domain.Account, error) {
	return s.register(ctx, "RegisterUser", caller, domain.KindUser)
}

// RegisterCompany opens a company account for caller with the company grant.
func (s *Ledger) RegisterCompany(ctx context.Context, caller string) (*domain.Account, error) {
	return s.register(ctx, "RegisterCompany", caller, domain.KindCompany)
}

func (s *Ledger) register(ctx context.Context, op, caller string, kind domain.Kind) (acct *domain.Account, err error) {
	ctx, done := s.begin(ctx, op, attribute.String("ledger.caller", caller))
	defer func() { done(err) }()

	if err := domain.ValidateAddress(caller); err != nil {
		return nil, err
	}

	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		existing, err := lookupAccount(ctx, tx, caller)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.AlreadyRegisteredError(caller)
		}

		acct, err = domain.NewAccount(caller, kind, s.now())
		if err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, acct); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.issued("registration", acct.Points)
	s.log(ctx).InfoContext(ctx, "account registered",
		slog.String("address", acct.Address),
		slog.String("kind", string(acct.Kind)),
		slog.Int64("points", acct.Points),
	)
	return acct, nil
}

// BuyPoints credits amount points to caller against a payment of exactly
// amount times the point price. The payment goes to the treasury.
func (s *Ledger) BuyPoints(ctx context.Context, caller string, amount, payment int64) (acct *domain.Account, err error) {
	ctx, done := s.begin(ctx, "BuyPoints",
		attribute.String("ledger.caller", caller),
		attribute.Int64("ledger.amount", amount),
	)
	defer func() { done(err) }()

	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		acct, err = requireAccount(ctx, tx, caller, domain.KindUser)
		if err != nil {
			return err
		}

		cost, err := s.price.Cost(amount)
		if err != nil {
			return err
		}
		if payment != cost {
			return domain.InvalidAmountError(
				fmt.Sprintf("payment of %d does not match price %d for %d points", payment, cost, amount))
		}

		treasury, err := tx.Treasury(ctx)
		if err != nil {
			return fmt.Errorf("load treasury: %w", err)
		}
		if err := acct.CheckCredit(amount); err != nil {
			return err
		}
		if err := treasury.CheckDeposit(payment); err != nil {
			return err
		}

		acct.Credit(amount)
		treasury.Deposit(payment)
		if err := tx.UpdateAccountPoints(ctx, acct.Address, acct.Points); err != nil {
			return fmt.Errorf("update points: %w", err)
		}
		if err := tx.UpdateTreasury(ctx, treasury); err != nil {
			return fmt.Errorf("update treasury: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.issued("purchase", amount)
	s.metrics.flow("received", payment)
	s.log(ctx).InfoContext(ctx, "points bought",
		slog.String("address", acct.Address),
		slog.Int64("amount", amount),
		slog.Int64("payment", payment),
		slog.Int64("points", acct.Points),
	)
	return acct, nil
}

// GetUserInfo returns address's points and reviewed products.
func (s *Ledger) GetUserInfo(ctx context.Context, address string) (info UserInfo, err error) {
	ctx, done := s.begin(ctx, "GetUserInfo")
	defer func() { done(err) }()

	info = UserInfo{Address: address, ReviewedProductIDs: []int64{}}
	err = s.store.View(ctx, func(tx repository.Tx) error {
		acct, err := lookupAccount(ctx, tx, address)
		if err != nil || acct == nil || acct.Kind != domain.KindUser {
			return err
		}
		ids, err := tx.ReviewedProductIDs(ctx, address)
		if err != nil {
			return fmt.Errorf("list reviewed products: %w", err)
		}

		info.Points = acct.Points
		info.Registered = true
		if ids != nil {
			info.ReviewedProductIDs = ids
		}
		return nil
	})
	if err != nil {
		return UserInfo{}, err
	}
	return info, nil
}

// GetCompanyInfo returns address's company points.
func (s *Ledger) GetCompanyInfo(ctx context.Context, address string) (info CompanyInfo, err error) {
	ctx, done := s.begin(ctx, "GetCompanyInfo")
	defer func() { done(err) }()

	info = CompanyInfo{Address: address}
	err = s.store.View(ctx, func(tx repository.Tx) error {
		acct, err := lookupAccount(ctx, tx, address)
		if err != nil || acct == nil || acct.Kind != domain.KindCompany {
			return err
		}
		info.Points = acct.Points
		info.Registered = true
		return nil
	})
	if err != nil {
		return CompanyInfo{}, err
	}
	return info, nil
}
