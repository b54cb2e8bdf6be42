package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/pkg/pagination"
)

// BuyProduct spends the product's price from caller's points and takes one
// unit out of stock. Repeat purchases of the same product are allowed.
func (s *Ledger) BuyProduct(ctx context.Context, caller string, productID int64) (purchase *domain.Purchase, err error) {
	ctx, done := s.begin(ctx, "BuyProduct",
		attribute.String("ledger.caller", caller),
		attribute.Int64("ledger.product_id", productID),
	)
	defer func() { done(err) }()

	var remaining int64
	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		acct, err := requireAccount(ctx, tx, caller, domain.KindUser)
		if err != nil {
			return err
		}
		p, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if err := p.CheckSell(); err != nil {
			return err
		}
		if err := acct.CheckDebit(p.Price); err != nil {
			return err
		}

		p.Sell()
		acct.Debit(p.Price)
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if err := tx.UpdateAccountPoints(ctx, acct.Address, acct.Points); err != nil {
			return fmt.Errorf("update points: %w", err)
		}

		purchase = &domain.Purchase{
			ID:        s.newID(),
			Buyer:     acct.Address,
			ProductID: p.ID,
			Price:     p.Price,
			CreatedAt: s.now(),
		}
		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
		remaining = acct.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).InfoContext(ctx, "product bought",
		slog.String("purchase_id", purchase.ID),
		slog.String("buyer", purchase.Buyer),
		slog.Int64("product_id", purchase.ProductID),
		slog.Int64("price", purchase.Price),
		slog.Int64("points", remaining),
	)
	return purchase, nil
}

// HasPurchased reports whether buyer holds a receipt for productID.
func (s *Ledger) HasPurchased(ctx context.Context, buyer string, productID int64) (ok bool, err error) {
	err = s.store.View(ctx, func(tx repository.Tx) error {
		ok, err = tx.HasPurchased(ctx, buyer, productID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return ok, nil
}

// ListPurchases returns a window of buyer's receipts, oldest first.
func (s *Ledger) ListPurchases(ctx context.Context, buyer string, params pagination.Params) (page pagination.Page[domain.Purchase], err error) {
	ctx, done := s.begin(ctx, "ListPurchases")
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		items, total, err := tx.ListPurchases(ctx, buyer, params.Limit, params.Offset)
		if err != nil {
			return fmt.Errorf("list purchases: %w", err)
		}
		page = pagination.NewPage(items, total, params)
		return nil
	})
	if err != nil {
		return pagination.Page[domain.Purchase]{}, err
	}
	return page, nil
}
