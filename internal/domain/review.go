package domain

import (
	"time"
	"unicode/utf8"

	apperrors "github.com/utafrali/pointledger/pkg/errors"
)

// Rating bounds and comment size limit.
const (
	MinRating        int64 = 1
	MaxRating        int64 = 5
	MaxCommentLength       = 1000
)

// Review is a buyer's rating of a product. At most one exists per
// (reviewer, product) pair.
type Review struct {
	ID        string    `json:"id"`
	ProductID int64     `json:"product_id"`
	Reviewer  string    `json:"reviewer"`
	Rating    int64     `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateComment enforces the comment length limit in characters.
func ValidateComment(comment string) error {
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return apperrors.InvalidInput("comment exceeds 1000 characters")
	}
	return nil
}
