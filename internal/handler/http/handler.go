package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/pointledger/internal/service"
	"github.com/utafrali/pointledger/pkg/httputil"
	"github.com/utafrali/pointledger/pkg/middleware"
)

// LedgerHandler serves the ledger's HTTP API.
type LedgerHandler struct {
	service *service.Ledger
	logger  *slog.Logger
}

// NewLedgerHandler creates a new ledger HTTP handler.
func NewLedgerHandler(svc *service.Ledger, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: svc,
		logger:  logger,
	}
}

func (h *LedgerHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

func caller(r *http.Request) string {
	return middleware.CallerFromContext(r.Context())
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return httputil.ParseID(w, r, "product id", chi.URLParam(r, "id"))
}
