package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/response"
	"github.com/noah-isme/coursehub-api/pkg/webhook"
)

const maxWebhookBody = 64 << 10

type paymentRecorder interface {
	RecordPayment(ctx context.Context, enrollmentID string, req dto.PaymentRequest) (*models.Enrollment, error)
}

// PaymentWebhookHandler receives signed payment notifications from the gateway.
type PaymentWebhookHandler struct {
	payments paymentRecorder
	secret   string
	logger   *zap.Logger
}

// NewPaymentWebhookHandler constructs the handler.
func NewPaymentWebhookHandler(payments paymentRecorder, secret string, logger *zap.Logger) *PaymentWebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWebhookHandler{payments: payments, secret: secret, logger: logger}
}

// Receive godoc
// @Summary Payment gateway notification
// @Description Body must be signed with hex(HMAC-SHA256(secret, body)) in X-Signature.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Signature header string true "Body signature"
// @Param payload body dto.PaymentWebhook true "Notification"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *PaymentWebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Validation(err, "unreadable body"))
		return
	}
	if err := webhook.Verify(h.secret, body, c.GetHeader(webhook.SignatureHeader)); err != nil {
		h.logger.Warn("rejected payment webhook", zap.Error(err), zap.String("remote", c.ClientIP()))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid signature"))
		return
	}

	var event dto.PaymentWebhook
	if err := json.Unmarshal(body, &event); err != nil {
		response.Error(c, bindError(err))
		return
	}
	if event.EnrollmentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enrollment_id is required"))
		return
	}

	enrollment, err := h.payments.RecordPayment(c.Request.Context(), event.EnrollmentID, event.PaymentRequest())
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidTransition) {
			h.logger.Info("payment webhook replay", zap.String("event_id", event.EventID), zap.String("enrollment_id", event.EnrollmentID))
		}
		response.Error(c, err)
		return
	}
	h.logger.Info("payment recorded",
		zap.String("event_id", event.EventID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("status", string(enrollment.Payment.Status)),
	)
	response.OK(c, enrollment)
}
