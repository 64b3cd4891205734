// Package wire defines the JSON frame types for the Triptalk chat protocol.
// Both the chat server and the Go SDK import these — single source of truth.
//
// Every frame is a JSON object with a "type" discriminator. Decoding is a
// closed step: a frame with an unknown type or a payload that does not match
// its type decodes to an error and must be dropped by the caller, never
// partially handled.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frame types, client → server.
const (
	TypeSend       = "message"
	TypeMarkAsRead = "markAsRead"
)

// Frame types, server → client.
const (
	TypeConnection    = "connection"
	TypeTickets       = "tickets"
	TypeHistory       = "history"
	TypeMessage       = "message"
	TypeTicketCreated = "ticket_created"
	TypeTicketClosed  = "ticket_closed"
	TypeError         = "error"
)

var (
	ErrUnknownType = errors.New("wire: unknown frame type")
	ErrBadFrame    = errors.New("wire: malformed frame")
)

// MessageData is the wire form of a chat message. The server fills ID and
// CreatedAt on the authoritative copy; TempID round-trips from the client's
// send frame so the sender can reconcile its optimistic entry.
type MessageData struct {
	ID         string    `json:"id,omitempty"`
	TempID     string    `json:"tempId,omitempty"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	PostID     string    `json:"postId,omitempty"`
	PostType   string    `json:"postType,omitempty"`
	TicketID   string    `json:"ticketId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	IsRead     bool      `json:"isRead,omitempty"`
}

// TicketData describes one support ticket in the agency↔support variant.
type TicketData struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"` // "open", "pending", "closed"
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// SessionData is the payload of a "connection" frame (server → client).
type SessionData struct {
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
}

// SendData is the payload of a client "message" frame. Supplying Subject
// with an empty TicketID asks the server to open a new ticket seeded with
// this first message.
type SendData struct {
	Content    string `json:"content"`
	PostID     string `json:"postId,omitempty"`
	PostType   string `json:"postType,omitempty"`
	UserID     string `json:"userId"`
	RoomID     string `json:"roomId,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
	TempID     string `json:"tempId"`
	TicketID   string `json:"ticketId,omitempty"`
	Subject    string `json:"subject,omitempty"`
}

// ServerFrame is one decoded server → client frame. Exactly the fields
// matching Type are populated.
type ServerFrame struct {
	Type    string
	Session *SessionData  // TypeConnection
	Tickets []TicketData  // TypeTickets
	History []MessageData // TypeHistory
	Message *MessageData  // TypeMessage, single delivery
	Batch   []MessageData // TypeMessage, batch delivery
	Ticket  *TicketData   // TypeTicketCreated / TypeTicketClosed
	Err     string        // TypeError
}

// rawFrame matches the superset of server frame shapes before dispatch.
type rawFrame struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	Messages json.RawMessage `json:"messages,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// errData is the long form of an error frame: {"data":{"error":"..."}}.
type errData struct {
	Error string `json:"error"`
}

// EncodeSend serialises a client "message" frame.
func EncodeSend(d SendData) ([]byte, error) {
	return json.Marshal(struct {
		Type string   `json:"type"`
		Data SendData `json:"data"`
	}{Type: TypeSend, Data: d})
}

// EncodeMarkAsRead serialises a client read-receipt frame.
func EncodeMarkAsRead(messageID, userID string) ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		MessageID string `json:"messageId"`
		UserID    string `json:"userId"`
	}{Type: TypeMarkAsRead, MessageID: messageID, UserID: userID})
}

// DecodeServerFrame parses one server frame. Unknown types return
// ErrUnknownType; payloads that do not match their declared type return an
// error wrapping ErrBadFrame.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return ServerFrame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	f := ServerFrame{Type: raw.Type}
	switch raw.Type {
	case TypeConnection:
		f.Session = &SessionData{}
		if len(raw.Data) > 0 {
			if err := json.Unmarshal(raw.Data, f.Session); err != nil {
				return ServerFrame{}, fmt.Errorf("%w: connection: %v", ErrBadFrame, err)
			}
		}

	case TypeTickets:
		if err := json.Unmarshal(raw.Data, &f.Tickets); err != nil {
			return ServerFrame{}, fmt.Errorf("%w: tickets: %v", ErrBadFrame, err)
		}

	case TypeHistory:
		if err := json.Unmarshal(raw.Data, &f.History); err != nil {
			return ServerFrame{}, fmt.Errorf("%w: history: %v", ErrBadFrame, err)
		}

	case TypeMessage:
		if len(raw.Messages) > 0 {
			if err := json.Unmarshal(raw.Messages, &f.Batch); err != nil {
				return ServerFrame{}, fmt.Errorf("%w: message batch: %v", ErrBadFrame, err)
			}
			break
		}
		f.Message = &MessageData{}
		if err := json.Unmarshal(raw.Data, f.Message); err != nil {
			return ServerFrame{}, fmt.Errorf("%w: message: %v", ErrBadFrame, err)
		}

	case TypeTicketCreated, TypeTicketClosed:
		f.Ticket = &TicketData{}
		if err := json.Unmarshal(raw.Data, f.Ticket); err != nil {
			return ServerFrame{}, fmt.Errorf("%w: %s: %v", ErrBadFrame, raw.Type, err)
		}

	case TypeError:
		// Two shapes in the wild: {"data":{"error":...}} and {"message":...}.
		if len(raw.Data) > 0 {
			var ed errData
			if err := json.Unmarshal(raw.Data, &ed); err != nil {
				return ServerFrame{}, fmt.Errorf("%w: error frame: %v", ErrBadFrame, err)
			}
			f.Err = ed.Error
		}
		if f.Err == "" {
			f.Err = raw.Message
		}

	default:
		return ServerFrame{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}

	return f, nil
}
