package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// logProcessingError logs a failed inbound event at a level matching the
// error type. The webhook still answers 200 so the provider does not
// redeliver.
func logProcessingError(err error, logger *zap.Logger) {
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("event rejected", zap.String("error", err.Error()))
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.String("service", circuitOpen.Service), zap.Error(err))
	case errors.As(err, &timeout):
		logger.Error("event timeout", zap.Error(err))
	case errors.As(err, &external):
		logger.Error("external service failure", zap.String("service", external.Service), zap.Error(err))
	default:
		logger.Error("event processing failed", zap.Error(err))
	}
}
