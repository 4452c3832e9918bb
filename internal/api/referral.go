package api

import (
	"errors"
	"net/http"

	"referral_rewards/internal/service"
	"referral_rewards/pkg/auth"
	"referral_rewards/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type referralRoutes struct {
	rs service.ReferralServiceI
	a  *auth.TokenAuth
}

func NewReferralRoutes(handler *gin.RouterGroup, rs service.ReferralServiceI, a *auth.TokenAuth) {
	r := &referralRoutes{rs: rs, a: a}
	h := handler.Group("/users")
	h.Use(a.UserAuthMiddleware())
	{
		h.POST("/referral-code", r.GenerateCode)
		h.POST("/redeem-code", r.RedeemCode)
		h.GET("/me/referral", r.GetReferralStatus)
	}
}

func (r *referralRoutes) GenerateCode(c *gin.Context) {
	log := logger.Logger()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		log.Error("user id not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	code, err := r.rs.GenerateCode(c.Request.Context(), userID)
	if err != nil {
		log.Error("failed to generate referral code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate referral code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referral_code": code,
	})
}

type RedeemCodeRequest struct {
	ReferralCode string `json:"referral_code"`
}

func (r *referralRoutes) RedeemCode(c *gin.Context) {
	log := logger.Logger()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		log.Error("user id not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	var req RedeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	redemption, err := r.rs.RedeemCode(c.Request.Context(), userID, req.ReferralCode)
	if err != nil {
		if rejection(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("failed to redeem referral code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem referral code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applied_code":   redemption.AppliedCode,
		"owner_username": redemption.OwnerUsername,
	})
}

func (r *referralRoutes) GetReferralStatus(c *gin.Context) {
	log := logger.Logger()

	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		log.Error("user id not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	referral, err := r.rs.GetReferralStatus(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoReferralRecord) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error("failed to get referral status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referral_code":  referral.Code,
		"referral_count": referral.ReferralCount,
		"redeemed_codes": referral.RedeemedCodes,
	})
}

// rejection reports whether err is an expected business outcome rather than
// an infrastructure failure. Rejections carry user-facing messages; anything
// else is reported generically.
func rejection(err error) bool {
	return errors.Is(err, service.ErrInvalidCode) ||
		errors.Is(err, service.ErrSelfRedemption) ||
		errors.Is(err, service.ErrNoReferralRecord) ||
		errors.Is(err, service.ErrAlreadyRedeemed) ||
		errors.Is(err, service.ErrRedemptionLimit)
}
