package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Entry represents a single audit log entry with structured fields
type Entry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Status       string            `json:"status"` // "success" or "failure"
	Details      map[string]string `json:"details,omitempty"`
}

// Logger provides structured audit logging for money movement and admin
// operations. The trail is append-only and separate from application logs.
type Logger struct {
	output *log.Logger
}

// NewLogger creates a new audit logger
func NewLogger() *Logger {
	return &Logger{
		output: log.New(log.Writer(), "[AUDIT] ", 0),
	}
}

// Log writes an audit entry to the log output
func (l *Logger) Log(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ERROR: Failed to marshal audit entry: %v", err)
		return
	}

	l.output.Println(string(data))
}

// PaymentReconciled records a webhook-driven payment state change.
func (l *Logger) PaymentReconciled(orderRef, paymentRef, status string, amountMinor int64) {
	l.Log(Entry{
		Action:       "payment.reconciled",
		ResourceType: "payment",
		ResourceID:   orderRef,
		Status:       "success",
		Details: map[string]string{
			"payment_ref":  paymentRef,
			"status":       status,
			"amount_minor": fmt.Sprintf("%d", amountMinor),
		},
	})
}

// AdminAction records a successful privileged operation.
func (l *Logger) AdminAction(action, actor, resourceType, resourceID string, details map[string]string) {
	l.Log(Entry{
		Action:       action,
		Actor:        actor,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       "success",
		Details:      details,
	})
}

// AuthFailure records a rejected authentication or authorization attempt.
func (l *Logger) AuthFailure(action, actor string, details map[string]string) {
	l.Log(Entry{
		Action:  action,
		Actor:   actor,
		Status:  "failure",
		Details: details,
	})
}
