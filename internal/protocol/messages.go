package protocol

import "encoding/json"

// MessageType identifies the type of gateway message.
type MessageType string

const (
	// Client -> Gateway
	TypeAuth    MessageType = "auth"
	TypeRequest MessageType = "request"

	// Gateway -> Client
	TypeAuthOK MessageType = "auth_ok"
	TypeResult MessageType = "result"
	TypeError  MessageType = "error"
)

// Op is the operation of a request, applied to one entity kind.
type Op string

const (
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

// Entity kinds the gateway understands.
const (
	KindProfile  = "profile"
	KindServer   = "server"
	KindChannel  = "channel"
	KindCategory = "category"
	KindRole     = "role"
	KindMember   = "member"
	KindMessage  = "message"
	KindFriend   = "friend"
	KindDM       = "dm"
)

// Envelope wraps all gateway messages with a type field and a correlation
// id linking requests to their results.
type Envelope struct {
	Type MessageType     `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthMessage is sent by the client immediately after connecting.
type AuthMessage struct {
	Address string `json:"address"`
	Token   string `json:"token,omitempty"` // signed session JWT, absent for read-only sessions
}

// AuthOKMessage acknowledges authentication.
type AuthOKMessage struct {
	Address string `json:"address"`
}

// Request addresses one entity by kind and key. Scope carries the owning
// identifiers a key alone cannot express (e.g. server and channel of a
// message); Value carries the entity payload for create/update.
type Request struct {
	Op    Op                `json:"op"`
	Kind  string            `json:"kind"`
	Key   string            `json:"key,omitempty"`
	Scope map[string]string `json:"scope,omitempty"`
	Value json.RawMessage   `json:"value,omitempty"`
}

// Result carries a request's response payload, absent for writes.
type Result struct {
	Value json.RawMessage `json:"value,omitempty"`
}

// ErrorMessage is sent by the gateway when a request fails.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidMsg   = "invalid_message"
	ErrCodeInternal     = "internal_error"
)

// NewEnvelope creates an envelope with the given type, correlation id and
// data.
func NewEnvelope(msgType MessageType, id string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type: msgType,
		ID:   id,
		Data: raw,
	}, nil
}

// ParseEnvelope parses a JSON message into an envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
