package http

import (
	"net/http"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/pkg/httputil"
)

// TreasuryResponse is the public treasury view.
type TreasuryResponse struct {
	domain.Treasury
	OwnerPayoutBalance int64 `json:"owner_payout_balance"`
	PointPrice         int64 `json:"point_price"`
}

// WithdrawalResponse reports the amount moved to the owner.
type WithdrawalResponse struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

// GetTreasury handles GET /api/v1/treasury
func (h *LedgerHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetTreasuryReport(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, TreasuryResponse{
		Treasury:           report.Treasury,
		OwnerPayoutBalance: report.OwnerPayoutBalance,
		PointPrice:         h.service.PointPrice(),
	})
}

// Withdraw handles POST /api/v1/treasury/withdrawals
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	recipient := caller(r)
	amount, err := h.service.Withdraw(r.Context(), recipient)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, WithdrawalResponse{Recipient: recipient, Amount: amount})
}
