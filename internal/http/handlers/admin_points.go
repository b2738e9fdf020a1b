package handlers

import (
	"net/http"

	"github.com/geocoder89/idprint/internal/metering"
	"github.com/gin-gonic/gin"
)

type AddPointsRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Points int    `json:"points" binding:"required,min=1,max=1000000"`
}

// AddPoints credits a user by email. Role is enforced by RequireRole on
// the route and again by the service.
func (h *PointsHandler) AddPoints(ctx *gin.Context) {
	var req AddPointsRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.svc.Credit(ctx.Request.Context(), principal(ctx), metering.CreditRequest{
		Email:     req.Email,
		Points:    req.Points,
		RequestID: requestIDFrom(ctx),
	})
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Points added successfully",
		"email":   u.Email,
		"points":  u.Points,
		"user": gin.H{
			"id":     u.ID,
			"email":  u.Email,
			"points": u.Points,
		},
	})
}
