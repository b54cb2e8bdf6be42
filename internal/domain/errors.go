package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// Ledger error kinds. Every rejected operation returns an *apperrors.AppError
// whose chain contains exactly one of these sentinels.
var (
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrNotRegistered      = errors.New("not registered")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = apperrors.ErrNotFound
	ErrOutOfStock         = errors.New("out of stock")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNotPurchased       = errors.New("not purchased")
	ErrAlreadyReviewed    = errors.New("already reviewed")
	ErrInvalidRating      = errors.New("invalid rating")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrOverflow           = errors.New("arithmetic overflow")
	ErrNoRatings          = errors.New("no ratings")
	ErrInvalidInput       = apperrors.ErrInvalidInput
)

// AlreadyRegisteredError reports a second registration for address.
func AlreadyRegisteredError(address string) *apperrors.AppError {
	return apperrors.New("ALREADY_REGISTERED", http.StatusConflict, ErrAlreadyRegistered,
		fmt.Sprintf("address %s is already registered", address))
}

// NotRegisteredError reports that address has no account of the wanted kind.
func NotRegisteredError(address string, want Kind) *apperrors.AppError {
	return apperrors.New("NOT_REGISTERED", http.StatusForbidden, ErrNotRegistered,
		fmt.Sprintf("address %s is not a registered %s", address, want))
}

// UnauthorizedError reports a caller lacking the privilege for an operation.
func UnauthorizedError(message string) *apperrors.AppError {
	return apperrors.New("UNAUTHORIZED", http.StatusForbidden, ErrUnauthorized, message)
}

// ProductNotFoundError reports an unknown product id.
func ProductNotFoundError(id int64) *apperrors.AppError {
	return apperrors.NotFound("product", strconv.FormatInt(id, 10))
}

// OutOfStockError reports a purchase attempt on a product with no stock left.
func OutOfStockError(id int64) *apperrors.AppError {
	return apperrors.New("OUT_OF_STOCK", http.StatusConflict, ErrOutOfStock,
		fmt.Sprintf("product %d is out of stock", id))
}

// InsufficientPointsError reports a balance lower than the amount required.
func InsufficientPointsError(have, need int64) *apperrors.AppError {
	return apperrors.New("INSUFFICIENT_POINTS", http.StatusUnprocessableEntity, ErrInsufficientPoints,
		fmt.Sprintf("balance of %d points is below the required %d", have, need))
}

// NotPurchasedError reports a review attempt without a prior purchase.
func NotPurchasedError(address string, productID int64) *apperrors.AppError {
	return apperrors.New("NOT_PURCHASED", http.StatusForbidden, ErrNotPurchased,
		fmt.Sprintf("address %s has not purchased product %d", address, productID))
}

// AlreadyReviewedError reports a second review of the same product.
func AlreadyReviewedError(address string, productID int64) *apperrors.AppError {
	return apperrors.New("ALREADY_REVIEWED", http.StatusConflict, ErrAlreadyReviewed,
		fmt.Sprintf("address %s has already reviewed product %d", address, productID))
}

// InvalidRatingError reports a rating outside [MinRating, MaxRating].
func InvalidRatingError(rating int64) *apperrors.AppError {
	return apperrors.New("INVALID_RATING", http.StatusBadRequest, ErrInvalidRating,
		fmt.Sprintf("rating %d is outside %d..%d", rating, MinRating, MaxRating))
}

// InvalidAmountError reports a non-positive or mismatched amount.
func InvalidAmountError(message string) *apperrors.AppError {
	return apperrors.New("INVALID_AMOUNT", http.StatusBadRequest, ErrInvalidAmount, message)
}

// OverflowError reports an arithmetic result that does not fit in int64.
func OverflowError(what string) *apperrors.AppError {
	return apperrors.New("OVERFLOW", http.StatusUnprocessableEntity, ErrOverflow,
		fmt.Sprintf("%s would overflow", what))
}

// NoRatingsError reports a rating query on a product nobody has reviewed.
func NoRatingsError(productID int64) *apperrors.AppError {
	return apperrors.New("NO_RATINGS", http.StatusOK, ErrNoRatings,
		fmt.Sprintf("product %d has no ratings", productID))
}
