package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kiwari-pos/backoffice/internal/model"
	"github.com/kiwari-pos/backoffice/internal/report"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const dataUnavailable = "data unavailable"

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Int("status", status).Msg("failed to encode JSON response")
	}
}

var badRequestErrors = []error{
	model.ErrEmptyItems,
	model.ErrInvalidQuantity,
	model.ErrInvalidChannel,
	model.ErrInvalidDeliveryType,
	model.ErrDeliveryAddressRequired,
	model.ErrInvalidStatus,
	model.ErrInvalidPaymentMethod,
	model.ErrInvalidAmount,
	report.ErrInvalidRange,
}

// statusFor maps a service error to an HTTP status and a client message.
func statusFor(err error) (int, string) {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, model.ErrTerminalState),
		errors.Is(err, model.ErrConflictingUpdate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, model.ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, dataUnavailable
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeError renders err. Only store and unexpected failures are logged.
func writeError(w http.ResponseWriter, logger zerolog.Logger, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("op", op).Int("status", status).Msg("request failed")
	}
	writeJSON(w, logger, status, map[string]string{"error": msg})
}

func formatItemError(idx int, msg string) string {
	return fmt.Sprintf("items[%d]: %s", idx, msg)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// pct renders a percentage with one decimal place; nil stays nil.
func pct(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(1)
	return &s
}
