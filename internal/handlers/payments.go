package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/middleware"
	"github.com/forumx/backend/internal/models"
	"github.com/forumx/backend/internal/payments"
)

const defaultMembershipType = "gold"

type PaymentHandler struct {
	store   database.Store
	gateway payments.Gateway
	plan    payments.Plan
	logger  *zap.Logger
}

func NewPaymentHandler(store database.Store, gateway payments.Gateway, plan payments.Plan, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{store: store, gateway: gateway, plan: plan, logger: logger}
}

func (h *PaymentHandler) available(c *gin.Context) bool {
	if h.gateway == nil {
		respondError(c, apperr.Unavailable("Payments are not configured"))
		return false
	}
	return true
}

// CreateMembershipIntent starts a membership payment for the caller
func (h *PaymentHandler) CreateMembershipIntent(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var input models.MembershipIntentRequest
	if !bindJSON(c, &input) {
		return
	}

	price := h.plan.Cents()
	if input.AmountInCents != nil && *input.AmountInCents != price {
		respondError(c, apperr.InvalidArgument("amountInCents must be %d", price))
		return
	}

	req := payments.IntentRequest{
		AmountCents:    price,
		Currency:       h.plan.Currency,
		MembershipType: firstNonEmpty(input.MembershipType, defaultMembershipType),
		UserEmail:      callerEmail(c),
	}
	if identity, ok := middleware.CurrentIdentity(c); ok {
		req.UserUID = identity.UID
	}

	intent, err := h.gateway.CreateIntent(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("payment intent failed", zap.String("user", req.UserEmail), zap.Error(err))
		respondError(c, apperr.Store(err, "failed to create payment intent"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clientSecret":  intent.ClientSecret,
		"amountInCents": intent.AmountCents,
		"amount":        payments.Amount(intent.AmountCents).StringFixed(2),
		"currency":      intent.Currency,
	})
}

// RecordMembershipPayment stores a completed payment and upgrades the caller
// to a gold member. The payment is kept even when the user is unknown.
func (h *PaymentHandler) RecordMembershipPayment(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var input models.MembershipPaymentRequest
	if !bindJSON(c, &input) {
		return
	}

	payment := models.Payment{
		UserEmail:       callerEmail(c),
		UserUID:         strings.TrimSpace(input.UserID),
		MembershipType:  firstNonEmpty(input.MembershipType, defaultMembershipType),
		AmountCents:     h.plan.Cents(),
		Currency:        h.plan.Currency,
		PaymentIntentID: strings.TrimSpace(input.TransactionID),
	}
	if identity, ok := middleware.CurrentIdentity(c); ok && payment.UserUID == "" {
		payment.UserUID = identity.UID
	}

	ctx := c.Request.Context()
	if err := h.store.InsertPayment(ctx, &payment); err != nil {
		respondError(c, fromStore(err, "Payment"))
		return
	}

	err := h.store.GrantMembership(ctx, payment.UserEmail, models.BadgeGold)
	if errors.Is(err, database.ErrNotFound) {
		h.logger.Warn("payment for unknown user", zap.String("user", payment.UserEmail), zap.String("payment_id", payment.ID))
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found, but payment recorded"})
		return
	}
	if err != nil {
		respondError(c, fromStore(err, "User"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"insertedId": payment.ID,
		"message":    "Payment recorded and user membership updated successfully",
	})
}
