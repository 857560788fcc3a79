package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Operation names what the worker must replay against the remote store.
type Operation string

const (
	// OpSync pushes a locally stored transaction to the remote store.
	OpSync Operation = "sync"
	// OpDelete repeats a remote delete that failed.
	OpDelete Operation = "delete"
)

// SyncMessage is published when a signed-in write fell back to local storage.
// It carries ids only; the worker reads the transaction from the local store.
type SyncMessage struct {
	Operation     Operation `json:"operation"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"tx_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewSyncMessage creates a message stamped with the current time.
func NewSyncMessage(op Operation, userID, txID string) *SyncMessage {
	return &SyncMessage{Operation: op, UserID: userID, TransactionID: txID, Timestamp: time.Now()}
}

// Validate rejects messages the worker cannot act on.
func (m *SyncMessage) Validate() error {
	if m.Operation != OpSync && m.Operation != OpDelete {
		return fmt.Errorf("unknown operation %q", m.Operation)
	}
	if strings.TrimSpace(m.UserID) == "" || strings.TrimSpace(m.TransactionID) == "" {
		return fmt.Errorf("message missing user or transaction id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *SyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncMessageFromJSON decodes and validates a message.
func SyncMessageFromJSON(data []byte) (*SyncMessage, error) {
	var msg SyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
