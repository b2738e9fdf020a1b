package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/gin-gonic/gin"
)

// StatusClientClosedRequest is logged when the caller hung up before we
// could answer.
const StatusClientClosedRequest = 499

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if v, ok := ctx.Get("request_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondDomainError maps metering errors onto the JSON envelope.
func RespondDomainError(ctx *gin.Context, err error) {
	var (
		inputErr      *points.InputError
		balanceErr    *points.InsufficientBalanceError
		processingErr *points.ProcessingError
	)

	switch {
	case errors.As(err, &inputErr):
		RespondBadRequest(ctx, "Invalid request", gin.H{"field": inputErr.Field, "message": inputErr.Message})

	case errors.Is(err, points.ErrUnauthorized):
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")

	case errors.Is(err, points.ErrForbidden):
		RespondForbidden(ctx, "Forbidden: Only admirals can add points")

	case errors.Is(err, points.ErrNotFound):
		RespondNotFound(ctx, "User not found")

	case errors.As(err, &balanceErr):
		RespondError(ctx, http.StatusPaymentRequired, "insufficient_points",
			"Insufficient points. Please add more points to continue.",
			gin.H{"balance": balanceErr.Balance, "cost": balanceErr.Cost, "shortfall": balanceErr.Shortfall()},
		)

	case errors.As(err, &processingErr):
		respondProcessing(ctx, processingErr)

	case errors.Is(err, context.Canceled):
		slog.Default().InfoContext(ctx.Request.Context(), "client gone before response", "request_id", requestIDFrom(ctx))
		ctx.AbortWithStatus(StatusClientClosedRequest)

	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "unhandled error", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Something went wrong")
	}
}

// Upstream 4xx is the caller's problem and passes through; anything else
// is a gateway failure.
func respondProcessing(ctx *gin.Context, pe *points.ProcessingError) {
	status := http.StatusBadGateway
	switch {
	case pe.Timeout:
		status = http.StatusGatewayTimeout
	case pe.Status >= 400 && pe.Status < 500:
		status = pe.Status
	}

	message := pe.Message
	if message == "" {
		message = "Failed to process document"
	}

	var details interface{}
	if pe.Status != 0 {
		details = gin.H{"upstreamStatus": pe.Status}
	}

	slog.Default().WarnContext(ctx.Request.Context(), "extractor failed",
		"upstream_status", pe.Status,
		"timeout", pe.Timeout,
		"err", pe.Error(),
		"request_id", requestIDFrom(ctx),
	)

	RespondError(ctx, status, "processing_failed", message, details)
}
