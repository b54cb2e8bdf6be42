package domain

import (
	"strings"
	"time"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// MaxProductNameLength bounds product names.
const MaxProductNameLength = 255

// Product is a catalog listing. Name and price are fixed at listing time;
// stock only decreases through purchases and the rating aggregate only grows
// through reviews.
type Product struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Price          int64     `json:"price"`
	Stock          int64     `json:"stock"`
	IsBetaTest     bool      `json:"is_beta_test"`
	TotalReviews   int64     `json:"total_reviews"`
	TotalRatingSum int64     `json:"total_rating_sum"`
	Company        string    `json:"company"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewProductInput holds the listing parameters supplied by a company.
type NewProductInput struct {
	Name       string
	Price      int64
	Stock      int64
	IsBetaTest bool
}

// Validate checks listing parameters.
func (in NewProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.InvalidInput("product name is required")
	}
	if len(in.Name) > MaxProductNameLength {
		return apperrors.InvalidInput("product name is too long")
	}
	if in.Price <= 0 {
		return InvalidAmountError("price must be greater than zero")
	}
	if in.Stock < 0 {
		return InvalidAmountError("stock must not be negative")
	}
	return nil
}

// NewProduct builds a product with an empty rating aggregate.
func NewProduct(id int64, company string, in NewProductInput, now time.Time) *Product {
	return &Product{
		ID:         id,
		Name:       in.Name,
		Price:      in.Price,
		Stock:      in.Stock,
		IsBetaTest: in.IsBetaTest,
		Company:    company,
		CreatedAt:  now,
	}
}

// CheckSell verifies at least one unit is left.
func (p *Product) CheckSell() error {
	if p.Stock <= 0 {
		return OutOfStockError(p.ID)
	}
	return nil
}

// Sell removes one unit from stock. CheckSell must have succeeded.
func (p *Product) Sell() {
	p.Stock--
}

// CheckRating verifies that rating is in range and the aggregate can absorb it.
func (p *Product) CheckRating(rating int64) error {
	if rating < MinRating || rating > MaxRating {
		return InvalidRatingError(rating)
	}
	if _, ok := addAmounts(p.TotalRatingSum, rating); !ok {
		return OverflowError("rating sum")
	}
	if _, ok := addAmounts(p.TotalReviews, 1); !ok {
		return OverflowError("review count")
	}
	return nil
}

// AddRating folds rating into the aggregate. CheckRating must have succeeded.
func (p *Product) AddRating(rating int64) {
	p.TotalReviews++
	p.TotalRatingSum += rating
}

// AverageRating returns the truncated mean rating. ok is false when the
// product has no reviews.
func (p *Product) AverageRating() (avg int64, ok bool) {
	if p.TotalReviews == 0 {
		return 0, false
	}
	return p.TotalRatingSum / p.TotalReviews, true
}
