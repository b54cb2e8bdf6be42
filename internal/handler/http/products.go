package http

import (
	"errors"
	"net/http"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/pkg/httputil"
	"github.com/utafrali/pointledger/pkg/pagination"
	"github.com/utafrali/pointledger/pkg/validator"
)

// AddProductRequest is the JSON request body for listing a product. Fields
// are checked by the ledger after the caller, so an omitted field arrives
// as its zero value.
type AddProductRequest struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	Stock      int64  `json:"stock"`
	IsBetaTest bool   `json:"is_beta_test"`
}

// SubmitReviewRequest is the JSON request body for reviewing a product.
// Rating range and comment length are enforced by the ledger so that its
// check order applies. An omitted rating is 0 and fails the range check.
type SubmitReviewRequest struct {
	Rating  int64  `json:"rating"`
	Comment string `json:"comment"`
}

// RatingResponse reports a product's average rating. Rated is false while
// the product has no reviews.
type RatingResponse struct {
	ProductID     int64 `json:"product_id"`
	AverageRating int64 `json:"average_rating"`
	Rated         bool  `json:"rated"`
}

// ListProducts handles GET /api/v1/products
func (h *LedgerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, products)
}

// AddProduct handles POST /api/v1/products
func (h *LedgerHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.service.AddProduct(r.Context(), caller(r), domain.NewProductInput{
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		IsBetaTest: req.IsBetaTest,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, p)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *LedgerHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// GetProductRating handles GET /api/v1/products/{id}/rating
func (h *LedgerHandler) GetProductRating(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	avg, err := h.service.GetProductRating(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNoRatings):
		httputil.WriteData(w, http.StatusOK, RatingResponse{ProductID: id})
	case err != nil:
		h.fail(w, r, err)
	default:
		httputil.WriteData(w, http.StatusOK, RatingResponse{ProductID: id, AverageRating: avg, Rated: true})
	}
}

// BuyProduct handles POST /api/v1/products/{id}/purchases
func (h *LedgerHandler) BuyProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	purchase, err := h.service.BuyProduct(r.Context(), caller(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, purchase)
}

// ListReviews handles GET /api/v1/products/{id}/reviews
func (h *LedgerHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListReviews(r.Context(), id, pagination.FromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// SubmitReview handles POST /api/v1/products/{id}/reviews
func (h *LedgerHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	review, err := h.service.SubmitReview(r.Context(), caller(r), id, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, review)
}
