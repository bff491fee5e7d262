package handler

import (
	"errors"
	"net/http"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

// Outcome is the body of every action response.
type Outcome struct {
	Success       bool              `json:"success"`
	Code          domain.ReasonCode `json:"code"`
	Message       string            `json:"message"`
	Shortages     []domain.Shortage `json:"shortages,omitempty"`
	CurrentStatus domain.Status     `json:"current_status,omitempty"`
	Data          any               `json:"data,omitempty"`
}

var statusByCode = map[domain.ReasonCode]int{
	domain.CodeOK:                http.StatusOK,
	domain.CodeAlreadyProcessed:  http.StatusOK,
	domain.CodeValidation:        http.StatusBadRequest,
	domain.CodeInvalidState:      http.StatusConflict,
	domain.CodeInsufficientStock: http.StatusConflict,
	domain.CodeNegativeStock:     http.StatusUnprocessableEntity,
	domain.CodeConflict:          http.StatusConflict,
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeForbidden:         http.StatusForbidden,
	domain.CodeInternal:          http.StatusInternalServerError,
	domain.CodeRateLimited:       http.StatusTooManyRequests,
}

func Success(message string, data any) (int, Outcome) {
	return http.StatusOK, Outcome{Success: true, Code: domain.CodeOK, Message: message, Data: data}
}

// Failure converts err into a status code and outcome. Internal errors carry a
// generic message; the caller is expected to have logged the original.
func Failure(err error) (int, Outcome) {
	code := domain.CodeOf(err)
	out := Outcome{Code: code, Message: err.Error()}

	var (
		stateErr *domain.StateError
		stockErr *domain.InsufficientStockError
	)
	switch {
	case code == domain.CodeAlreadyProcessed:
		out.Success = true
	case errors.As(err, &stateErr):
		out.CurrentStatus = stateErr.Current
	case errors.As(err, &stockErr):
		out.Shortages = stockErr.Shortages
	case code == domain.CodeNotFound:
		out.Message = "not found"
	case code == domain.CodeForbidden:
		out.Message = "forbidden"
	case code == domain.CodeConflict:
		out.Message = "the record was changed by another request, please retry"
	case code == domain.CodeNegativeStock:
		out.Message = "stock cannot go below zero"
	case code == domain.CodeInternal:
		out.Message = "internal error"
	}

	return statusByCode[code], out
}
