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

// SubmitReview records caller's one review of a product they bought and
// folds the rating into the product's aggregate.
func (s *Ledger) SubmitReview(ctx context.Context, caller string, productID, rating int64, comment string) (review *domain.Review, err error) {
	ctx, done := s.begin(ctx, "SubmitReview",
		attribute.String("ledger.caller", caller),
		attribute.Int64("ledger.product_id", productID),
	)
	defer func() { done(err) }()

	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		acct, err := requireAccount(ctx, tx, caller, domain.KindUser)
		if err != nil {
			return err
		}
		p, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		bought, err := tx.HasPurchased(ctx, acct.Address, p.ID)
		if err != nil {
			return fmt.Errorf("check purchase: %w", err)
		}
		if !bought {
			return domain.NotPurchasedError(acct.Address, p.ID)
		}
		reviewed, err := tx.HasReviewed(ctx, acct.Address, p.ID)
		if err != nil {
			return fmt.Errorf("check review: %w", err)
		}
		if reviewed {
			return domain.AlreadyReviewedError(acct.Address, p.ID)
		}

		if rating < domain.MinRating || rating > domain.MaxRating {
			return domain.InvalidRatingError(rating)
		}
		if err := domain.ValidateComment(comment); err != nil {
			return err
		}
		if err := p.CheckRating(rating); err != nil {
			return err
		}

		p.AddRating(rating)
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		review = &domain.Review{
			ID:        s.newID(),
			ProductID: p.ID,
			Reviewer:  acct.Address,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: s.now(),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("reviewer", review.Reviewer),
		slog.Int64("product_id", review.ProductID),
		slog.Int64("rating", review.Rating),
	)
	return review, nil
}

// GetProductRating returns the truncated average rating of a product. A
// product without reviews yields an error matching domain.ErrNoRatings.
func (s *Ledger) GetProductRating(ctx context.Context, productID int64) (avg int64, err error) {
	ctx, done := s.begin(ctx, "GetProductRating", attribute.Int64("ledger.product_id", productID))
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		p, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		var ok bool
		if avg, ok = p.AverageRating(); !ok {
			return domain.NoRatingsError(productID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return avg, nil
}

// ListReviews returns a window of a product's reviews in submission order.
func (s *Ledger) ListReviews(ctx context.Context, productID int64, params pagination.Params) (page pagination.Page[domain.Review], err error) {
	ctx, done := s.begin(ctx, "ListReviews", attribute.Int64("ledger.product_id", productID))
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		if _, err := loadProduct(ctx, tx, productID); err != nil {
			return err
		}
		items, total, err := tx.ListReviews(ctx, productID, params.Limit, params.Offset)
		if err != nil {
			return fmt.Errorf("list reviews: %w", err)
		}
		page = pagination.NewPage(items, total, params)
		return nil
	})
	if err != nil {
		return pagination.Page[domain.Review]{}, err
	}
	return page, nil
}
