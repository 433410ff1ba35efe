package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LabelAll asks the worker to run every sync job.
const LabelAll = "all"

// SyncRequestMessage asks the worker to run one sync job, or all of them.
type SyncRequestMessage struct {
	Label     string    `json:"label"`
	RequestID uuid.UUID `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrInvalidMessage = errors.New("invalid sync request message")

func NewSyncRequestMessage(label string) *SyncRequestMessage {
	return &SyncRequestMessage{
		Label:     strings.TrimSpace(label),
		RequestID: uuid.New(),
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes a message and rejects one without a label.
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	msg.Label = strings.TrimSpace(msg.Label)
	if msg.Label == "" {
		return nil, fmt.Errorf("%w: missing label", ErrInvalidMessage)
	}
	return &msg, nil
}
