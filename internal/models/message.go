package models

import (
	"encoding/json"
	"time"
)

// MessageType represents the type of a live stream frame
type MessageType string

const (
	MessageTypeState       MessageType = "state"
	MessageTypeCalibration MessageType = "calibration"
	MessageTypeNetwork     MessageType = "network"
	MessageTypeError       MessageType = "error"
)

// Message is the envelope for all websocket frames
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadJSON,
		Timestamp: time.Now(),
	}, nil
}

// CalibrationMessage is the payload for MessageTypeCalibration
type CalibrationMessage struct {
	R0         Fixed `json:"r0"`
	Calibrated bool  `json:"calibrated"`
}

// ErrorMessage is the payload for MessageTypeError
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UnmarshalPayload unmarshals the message payload into the provided struct
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
