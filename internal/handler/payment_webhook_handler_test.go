package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
	"github.com/noah-isme/coursehub-api/pkg/webhook"
)

const webhookSecret = "whsec_test"

func signedWebhook(body string, signature string) (*PaymentWebhookHandler, *enrollmentMock, func() int) {
	svc := &enrollmentMock{enrollment: &models.Enrollment{ID: "enr-1", Payment: models.Payment{Status: models.PaymentStatusCompleted}}}
	h := NewPaymentWebhookHandler(svc, webhookSecret, nil)
	return h, svc, func() int {
		c, w := newGinContext(http.MethodPost, "/payments/webhook", []byte(body))
		if signature != "" {
			c.Request.Header.Set(webhook.SignatureHeader, signature)
		}
		h.Receive(c)
		return w.Code
	}
}

func TestPaymentWebhookRecordsSignedEvent(t *testing.T) {
	body := `{"event_id":"evt-1","enrollment_id":"enr-1","amount":49,"provider":"stripe","status":"completed"}`
	_, svc, send := signedWebhook(body, webhook.Sign(webhookSecret, []byte(body)))

	require.Equal(t, http.StatusOK, send())
	require.Equal(t, 1, svc.writes)
	assert.Equal(t, models.PaymentStatusCompleted, svc.lastPayment.Status)
	assert.Equal(t, "stripe", svc.lastPayment.Provider)
	require.NotNil(t, svc.lastPayment.Amount)
	assert.Equal(t, 49.0, *svc.lastPayment.Amount)
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	body := `{"enrollment_id":"enr-1","amount":49,"status":"completed"}`

	_, svc, send := signedWebhook(body, "")
	assert.Equal(t, http.StatusUnauthorized, send())
	assert.Zero(t, svc.writes)

	_, svc, send = signedWebhook(body, webhook.Sign("other", []byte(body)))
	assert.Equal(t, http.StatusUnauthorized, send())
	assert.Zero(t, svc.writes)
}

func TestPaymentWebhookRequiresEnrollment(t *testing.T) {
	body := `{"amount":49,"status":"completed"}`
	_, svc, send := signedWebhook(body, webhook.Sign(webhookSecret, []byte(body)))
	assert.Equal(t, http.StatusBadRequest, send())
	assert.Zero(t, svc.writes)
}

func TestPaymentWebhookReplayIsConflict(t *testing.T) {
	body := `{"event_id":"evt-1","enrollment_id":"enr-1","amount":49,"status":"completed"}`
	_, svc, send := signedWebhook(body, "sha256="+webhook.Sign(webhookSecret, []byte(body)))
	svc.err = appErrors.Clone(appErrors.ErrInvalidTransition, "payment already completed")
	assert.Equal(t, http.StatusConflict, send())
}
