package repository

import (
	"context"

	"github.com/utafrali/pointledger/internal/domain"
	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = apperrors.ErrNotFound

// Store runs units of work against the ledger state.
type Store interface {
	// Atomic runs fn as a single serializable unit. If fn returns an error
	// none of its writes are visible afterwards. Rows read inside fn are
	// locked until it returns.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot. Tx mutators
	// fail inside View.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Tx is the set of ledger reads and writes available inside a unit of work.
type Tx interface {
	// AccountByAddress returns the account registered at address or ErrNotFound.
	AccountByAddress(ctx context.Context, address string) (*domain.Account, error)
	// CreateAccount inserts a new account. A duplicate address yields an
	// error matching domain.ErrAlreadyRegistered.
	CreateAccount(ctx context.Context, account *domain.Account) error
	// UpdateAccountPoints overwrites the balance of an existing account.
	UpdateAccountPoints(ctx context.Context, address string, points int64) error

	// Treasury returns the singleton treasury row.
	Treasury(ctx context.Context) (*domain.Treasury, error)
	// UpdateTreasury persists balance and running totals.
	UpdateTreasury(ctx context.Context, t *domain.Treasury) error
	// NextProductID allocates the next product id, starting at 1. The
	// allocation is undone if the unit of work fails.
	NextProductID(ctx context.Context) (int64, error)

	// ProductByID returns a product or ErrNotFound.
	ProductByID(ctx context.Context, id int64) (*domain.Product, error)
	// CreateProduct inserts a product under its preallocated id.
	CreateProduct(ctx context.Context, p *domain.Product) error
	// UpdateProduct persists stock and rating aggregate.
	UpdateProduct(ctx context.Context, p *domain.Product) error
	// ListProducts returns products ordered by id and the total count. A
	// non-positive limit returns every product from offset on.
	ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, int, error)

	// CreatePurchase records a purchase receipt.
	CreatePurchase(ctx context.Context, p *domain.Purchase) error
	// HasPurchased reports whether buyer has at least one receipt for productID.
	HasPurchased(ctx context.Context, buyer string, productID int64) (bool, error)
	// ListPurchases returns buyer's receipts, oldest first, and the total count.
	ListPurchases(ctx context.Context, buyer string, limit, offset int) ([]domain.Purchase, int, error)

	// HasReviewed reports whether reviewer already reviewed productID.
	HasReviewed(ctx context.Context, reviewer string, productID int64) (bool, error)
	// CreateReview inserts a review. A duplicate (reviewer, product) pair
	// yields an error matching domain.ErrAlreadyReviewed.
	CreateReview(ctx context.Context, r *domain.Review) error
	// ReviewedProductIDs lists the products reviewer has rated, in review order.
	ReviewedProductIDs(ctx context.Context, reviewer string) ([]int64, error)
	// ListReviews returns reviews of productID, oldest first, and the total count.
	ListReviews(ctx context.Context, productID int64, limit, offset int) ([]domain.Review, int, error)

	// CreateWithdrawal records a treasury payout.
	CreateWithdrawal(ctx context.Context, w *domain.Withdrawal) error
	// WithdrawnTo sums all payouts made to recipient.
	WithdrawnTo(ctx context.Context, recipient string) (int64, error)
}
