package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// WebhookDelivery is the provider's envelope. Only the fields the
// reconciler reads are mapped.
type WebhookDelivery struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// PaymentEntity is the provider-side payment inside a delivery.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Status  string `json:"status"`
}

// VerifySignature checks the HMAC-SHA256 hex signature the provider puts
// on webhook deliveries, computed over the raw request body.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyRedirectSignature checks the checkout redirect signature, which
// is HMAC-SHA256 over "orderRef|paymentRef" with the API key secret.
func VerifyRedirectSignature(keySecret, orderRef, paymentRef, signature string) bool {
	if keySecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(keySecret))
	fmt.Fprintf(mac, "%s|%s", orderRef, paymentRef)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook decodes a delivery body. Signature verification happens
// before this is called.
func ParseWebhook(body []byte) (*WebhookDelivery, error) {
	var delivery WebhookDelivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return nil, err
	}
	if delivery.Event == "" {
		return nil, fmt.Errorf("delivery has no event field")
	}
	return &delivery, nil
}
