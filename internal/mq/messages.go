package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType — тип сообщения, по нему Consumer выбирает обработчик.
type MessageType string

const (
	MessageTypeLoadReady     MessageType = "load.ready"
	MessageTypeLoadCompleted MessageType = "load.completed"
)

// Message — конверт сообщения. Payload хранится в JSON до вызова ParsePayload.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage упаковывает payload в конверт с новым ID.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, fmt.Errorf("%s: empty payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}

// LoadReadyPayload — загрузка переведена в QUEUED.
type LoadReadyPayload struct {
	TaskID uuid.UUID `json:"task_id"`
}

// LoadCompletedPayload — загрузка завершилась (SUCCEEDED или FAILED).
type LoadCompletedPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	Name    string    `json:"name,omitempty"`
	Status  string    `json:"status"`
	Attempt int       `json:"attempt"`

	// ReturnValue — MAX(max_id_key) либо nil; поле присутствует всегда.
	ReturnValue any    `json:"return_value"`
	Error       string `json:"error,omitempty"`
}
