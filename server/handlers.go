package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"time26/models"
	"time26/rewards"
	"time26/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type settlementResponse struct {
	Success bool `json:"success"`
	*service.SettlementResult
}

// handleDailySettlement settles ?day=YYYY-MM-DD, defaulting to yesterday (UTC)
func (s *Server) handleDailySettlement(c *gin.Context) {
	dayID := c.Query("day")
	if dayID == "" {
		dayID = rewards.PreviousDayID(s.now())
	}

	result, err := s.services.Settlement.Settle(c.Request.Context(), dayID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settlementResponse{Success: true, SettlementResult: result})
}

func (s *Server) handlePushRoot(c *gin.Context) {
	result, err := s.services.Claim.PushRoot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReconcileMints(c *gin.Context) {
	result, err := s.services.Gasless.ReconcilePending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleClaimProof(c *gin.Context) {
	wallet := c.GetString(ctxWallet)
	if wallet == "" {
		writeError(c, &service.ValidationError{Field: "wallet", Reason: "session has no wallet"})
		return
	}

	proof, err := s.services.Claim.GetClaimProof(c.Request.Context(), wallet)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proof)
}

func (s *Server) handleGetBalance(c *gin.Context) {
	balance, err := s.services.Ledger.GetBalance(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":     balance.Balance.String(),
		"pendingBurn": balance.PendingBurn.String(),
	})
}

type spendRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	SessionID string `json:"sessionId"`
}

func (s *Server) handleSpend(c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &service.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	balance, err := s.services.Ledger.Spend(c.Request.Context(), service.SpendRequest{
		UserID:    c.GetString(ctxUserID),
		Amount:    req.Amount,
		Reason:    req.Reason,
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"balance":     balance.Balance.String(),
		"pendingBurn": balance.PendingBurn.String(),
	})
}

func (s *Server) handleEligibility(c *gin.Context) {
	duration, err := strconv.ParseInt(c.Query("duration"), 10, 64)
	if err != nil {
		writeError(c, &service.ValidationError{Field: "duration", Reason: "must be an integer number of seconds"})
		return
	}

	result, err := s.services.Gasless.CheckEligibility(c.Request.Context(), c.GetString(ctxUserID), duration)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGaslessMint(c *gin.Context) {
	var req models.SponsoredMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &service.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	result, err := s.services.Gasless.Mint(c.Request.Context(), c.GetString(ctxUserID), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps service errors to status codes with a machine readable code
func writeError(c *gin.Context, err error) {
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "insufficient balance",
			"code":      "insufficient_balance",
			"available": insufficient.Available.String(),
			"requested": insufficient.Requested.String(),
		})
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrInsufficientBalance):
		status, code = http.StatusBadRequest, "insufficient_balance"
	case errors.Is(err, service.ErrNotEligible):
		status, code = http.StatusBadRequest, "not_eligible"
	case errors.Is(err, service.ErrUserNotFound):
		status, code = http.StatusNotFound, "user_not_found"
	case errors.Is(err, service.ErrNothingToClaim):
		status, code = http.StatusNotFound, "nothing_to_claim"
	case errors.Is(err, service.ErrMintOutcomeUnknown):
		status, code = http.StatusAccepted, "mint_outcome_unknown"
	case errors.Is(err, service.ErrRollbackExhausted):
		code = "ledger_inconsistency"
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(status, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
