package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"blikterminal/internal/server/service"
	"blikterminal/internal/shared/models"
)

const (
	msgSuccess      = "Transaction successful"
	msgInvalidCode  = "Invalid BLIK code"
	msgCodeExpired  = "BLIK code expired"
	msgInsufficient = "Insufficient funds"
	msgInvalidInput = "Invalid input"
	msgCardDeclined = "Insufficient funds or invalid card"
	msgInternal     = "Internal server error"
)

func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func parseAmount(n json.Number) (decimal.Decimal, bool) {
	if n == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func invalidInput(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, models.TransactionResponse{Message: msgInvalidInput, ErrorCode: models.CodeInvalidInput})
}

// writeFailure maps a service error onto the terminal-facing message. Card
// payments do not reveal whether the card or the balance was the problem.
func (r *Router) writeFailure(w http.ResponseWriter, err error, card bool) {
	resp := models.TransactionResponse{}
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		resp.Message, resp.ErrorCode = msgInvalidInput, models.CodeInvalidInput
	case card && (errors.Is(err, service.ErrInsufficientFunds) || errors.Is(err, service.ErrAccountNotFound)):
		resp.Message, resp.ErrorCode = msgCardDeclined, models.CodeInsufficientFunds
	case errors.Is(err, service.ErrInsufficientFunds):
		resp.Message, resp.ErrorCode = msgInsufficient, models.CodeInsufficientFunds
	case errors.Is(err, service.ErrCodeExpired):
		resp.Message, resp.ErrorCode = msgCodeExpired, models.CodeExpired
	case errors.Is(err, service.ErrInvalidCode), errors.Is(err, service.ErrAccountNotFound):
		resp.Message, resp.ErrorCode = msgInvalidCode, models.CodeInvalidCode
	default:
		r.logger.Error("transaction", zap.Error(err))
		status = http.StatusInternalServerError
		resp.Message, resp.ErrorCode = msgInternal, models.CodeInternal
	}
	writeJSON(w, status, resp)
}

func (r *Router) handleVerifyBlik(w http.ResponseWriter, req *http.Request) {
	var body models.VerifyBlikRequest
	if err := r.decode(w, req, &body); err != nil {
		invalidInput(w)
		return
	}
	amount, ok := parseAmount(body.Amount)
	if !ok || body.BlikCode == "" {
		invalidInput(w)
		return
	}
	out, err := r.services.Authorization.VerifyBlik(req.Context(), body.BlikCode, amount, r.services.Now())
	if err != nil {
		r.writeFailure(w, err, false)
		return
	}
	writeJSON(w, http.StatusOK, models.TransactionResponse{Message: msgSuccess, NewBalance: jsonAmount(out.NewBalance)})
}

func (r *Router) handleCheckBalance(w http.ResponseWriter, req *http.Request) {
	var body models.CheckBalanceRequest
	if err := r.decode(w, req, &body); err != nil {
		invalidInput(w)
		return
	}
	amount, ok := parseAmount(body.Amount)
	if !ok {
		invalidInput(w)
		return
	}
	out, err := r.services.Authorization.ChargeCard(req.Context(), body.CardID, amount, r.services.Now())
	if err != nil {
		r.writeFailure(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, models.TransactionResponse{Message: msgSuccess, NewBalance: jsonAmount(out.NewBalance)})
}
