package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/get-me-through/server/internal/api/problem"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
)

const (
	testWebhookSecret = "whsec_test"
	testKeySecret     = "rzp_secret_test"
)

type ledgerStub struct {
	payment      *payments.Payment
	transitioned bool
	applyErr     error
	applied      []payments.StatusUpdate
}

func (s *ledgerStub) CreatePending(context.Context, *registrations.Registration, *payments.Payment) error {
	return nil
}

func (s *ledgerStub) GetByUserEvent(context.Context, string, string) (*payments.Payment, error) {
	if s.payment == nil {
		return nil, payments.ErrNotFound
	}
	return s.payment, nil
}

func (s *ledgerStub) GetByOrderRef(context.Context, string) (*payments.Payment, error) {
	if s.payment == nil {
		return nil, payments.ErrNotFound
	}
	return s.payment, nil
}

func (s *ledgerStub) ApplyStatus(_ context.Context, update payments.StatusUpdate) (*payments.Payment, bool, error) {
	s.applied = append(s.applied, update)
	if s.applyErr != nil {
		return nil, false, s.applyErr
	}
	return s.payment, s.transitioned, nil
}

func (s *ledgerStub) HasCaptured(context.Context, string, string) (bool, error) {
	return s.payment != nil && s.payment.Status == payments.StatusCaptured, nil
}

type catalogStub struct {
	event    *events.Event
	reserved []string
}

func (s *catalogStub) Get(_ context.Context, id string) (*events.Event, error) {
	if s.event == nil || s.event.ID != id {
		return nil, events.ErrNotFound
	}
	return s.event, nil
}

func (s *catalogStub) ReserveSlot(_ context.Context, id string) error {
	s.reserved = append(s.reserved, id)
	return nil
}

type auditStub struct {
	reconciled []string
}

func (s *auditStub) PaymentReconciled(orderRef, paymentRef, status string, amountMinor int64) {
	s.reconciled = append(s.reconciled, fmt.Sprintf("%s:%s", orderRef, status))
}

type notifierStub struct {
	notified []string
}

func (s *notifierStub) NotifyReconciliation(_ context.Context, payment *payments.Payment, outcome string) error {
	s.notified = append(s.notified, fmt.Sprintf("%s:%s", payment.OrderRef, outcome))
	return nil
}

func newWebhookFixture(t *testing.T, ledger *ledgerStub, catalog *catalogStub) (*PaymentsHandler, *auditStub, *notifierStub) {
	t.Helper()
	auditor := &auditStub{}
	notifier := &notifierStub{}
	svc := payments.NewService(ledger, catalog, nil, auditor, notifier, payments.Config{
		Currency:      "INR",
		WebhookSecret: testWebhookSecret,
		KeySecret:     testKeySecret,
	}, zerolog.Nop())
	return NewPaymentsHandler(svc, "test", zerolog.Nop()), auditor, notifier
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedDelivery(orderRef string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_test1",
			"order_id": %q,
			"amount": 50000,
			"method": "upi",
			"status": "captured"
		}}},
		"created_at": 1756400000
	}`, orderRef))
}

func postWebhook(handler *PaymentsHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	handler.Webhook(w, req)
	return w
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	ledger := &ledgerStub{}
	handler, auditor, _ := newWebhookFixture(t, ledger, &catalogStub{})

	body := capturedDelivery("order_test1")
	w := postWebhook(handler, body, "deadbeef")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, ledger.applied, "nothing should mutate on a signature mismatch")
	require.Empty(t, auditor.reconciled)

	var p problem.ProblemDetails
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	require.Equal(t, problem.TypeUnauthorized, p.Type)
}

func TestWebhook_RejectsMissingSignature(t *testing.T) {
	ledger := &ledgerStub{}
	handler, _, _ := newWebhookFixture(t, ledger, &catalogStub{})

	w := postWebhook(handler, capturedDelivery("order_test1"), "")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, ledger.applied)
}

func TestWebhook_CaptureReservesSlotAndNotifies(t *testing.T) {
	payment := &payments.Payment{
		ID:         "01TESTPAYMENT0000000000000",
		UserID:     "user-1",
		EventID:    "event-1",
		OrderRef:   "order_test1",
		PaymentRef: "pay_test1",
		Status:     payments.StatusCaptured,
		AmountPaid: 50000,
	}
	ledger := &ledgerStub{payment: payment, transitioned: true}
	catalog := &catalogStub{event: &events.Event{ID: "event-1"}}
	handler, auditor, notifier := newWebhookFixture(t, ledger, catalog)

	body := capturedDelivery("order_test1")
	w := postWebhook(handler, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ledger.applied, 1)
	require.Equal(t, "order_test1", ledger.applied[0].OrderRef)
	require.Equal(t, payments.StatusCaptured, ledger.applied[0].Status)
	require.Equal(t, []string{"event-1"}, catalog.reserved)
	require.Equal(t, []string{"order_test1:captured"}, auditor.reconciled)
	require.Equal(t, []string{"order_test1:captured"}, notifier.notified)
}

func TestWebhook_ReplayIsAcknowledgedWithoutEffect(t *testing.T) {
	ledger := &ledgerStub{payment: &payments.Payment{OrderRef: "order_test1"}, transitioned: false}
	catalog := &catalogStub{}
	handler, auditor, notifier := newWebhookFixture(t, ledger, catalog)

	body := capturedDelivery("order_test1")
	w := postWebhook(handler, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, catalog.reserved)
	require.Empty(t, auditor.reconciled)
	require.Empty(t, notifier.notified)
}

func TestWebhook_UnknownOrderIsAcknowledged(t *testing.T) {
	ledger := &ledgerStub{applyErr: payments.ErrNotFound}
	handler, auditor, _ := newWebhookFixture(t, ledger, &catalogStub{})

	body := capturedDelivery("order_ghost")
	w := postWebhook(handler, body, signBody(testWebhookSecret, body))

	// Acknowledged so the provider stops retrying a delivery we can never
	// match.
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, auditor.reconciled)
}

func TestWebhook_IgnoresUnrelatedEvents(t *testing.T) {
	ledger := &ledgerStub{}
	handler, _, _ := newWebhookFixture(t, ledger, &catalogStub{})

	body := []byte(`{"event": "order.paid", "payload": {"payment": {"entity": {}}}}`)
	w := postWebhook(handler, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, ledger.applied)
}

func TestVerifyRedirect(t *testing.T) {
	handler, _, _ := newWebhookFixture(t, &ledgerStub{}, &catalogStub{})

	mac := hmac.New(sha256.New, []byte(testKeySecret))
	fmt.Fprintf(mac, "%s|%s", "order_test1", "pay_test1")
	goodSig := hex.EncodeToString(mac.Sum(nil))

	t.Run("valid signature", func(t *testing.T) {
		body := fmt.Sprintf(`{"razorpay_order_id":"order_test1","razorpay_payment_id":"pay_test1","razorpay_signature":%q}`, goodSig)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.VerifyRedirect(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tampered signature", func(t *testing.T) {
		body := `{"razorpay_order_id":"order_test1","razorpay_payment_id":"pay_test1","razorpay_signature":"deadbeef"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.VerifyRedirect(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
