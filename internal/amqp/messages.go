package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseSyncMessage asks the export worker to mirror one recorded expense.
// It carries only the id; the worker fetches the full record from storage,
// so a stale message can never overwrite newer data.
type ExpenseSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseSyncMessage(id int64) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseSyncMessageFromJSON creates a message from JSON bytes
func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
