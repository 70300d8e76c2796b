package amqp

import (
	"encoding/json"
	"time"
)

// TransactionCreatedMessage announces a freshly materialized transaction.
// It carries only ids; the notify worker fetches the full row from the
// database so the message stays valid even if fields change.
type TransactionCreatedMessage struct {
	TransactionID string    `json:"transaction_id"`
	RecurringID   string    `json:"recurring_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionCreatedMessage(transactionID, recurringID string) *TransactionCreatedMessage {
	return &TransactionCreatedMessage{
		TransactionID: transactionID,
		RecurringID:   recurringID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionCreatedMessageFromJSON(data []byte) (*TransactionCreatedMessage, error) {
	var msg TransactionCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
