package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/pointledger/pkg/httputil"
	"github.com/utafrali/pointledger/pkg/pagination"
	"github.com/utafrali/pointledger/pkg/validator"
)

// BuyPointsRequest is the JSON request body for buying points. An omitted
// field is 0, which the ledger rejects as an invalid amount once the caller
// is known to be registered.
type BuyPointsRequest struct {
	Amount  int64 `json:"amount"`
	Payment int64 `json:"payment"`
}

// RegisterUser handles POST /api/v1/users
func (h *LedgerHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.RegisterUser(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, acct)
}

// RegisterCompany handles POST /api/v1/companies
func (h *LedgerHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.RegisterCompany(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, acct)
}

// GetUserInfo handles GET /api/v1/users/{address}
func (h *LedgerHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetUserInfo(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, info)
}

// GetCompanyInfo handles GET /api/v1/companies/{address}
func (h *LedgerHandler) GetCompanyInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetCompanyInfo(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, info)
}

// ListPurchases handles GET /api/v1/users/{address}/purchases
func (h *LedgerHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListPurchases(r.Context(), chi.URLParam(r, "address"), pagination.FromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, page)
}

// BuyPoints handles POST /api/v1/points
func (h *LedgerHandler) BuyPoints(w http.ResponseWriter, r *http.Request) {
	var req BuyPointsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	acct, err := h.service.BuyPoints(r.Context(), caller(r), req.Amount, req.Payment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, acct)
}
