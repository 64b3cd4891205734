package triptalk

import (
	"errors"
	"time"

	"github.com/triptalk/triptalk-go-sdk/store"
	"github.com/triptalk/triptalk-go-sdk/wire"
)

// Message is one entry in the active conversation, oldest first in
// Client.Messages(). Pending is true for optimistic sends not yet
// acknowledged by the server.
type Message = store.Message

// Ticket statuses in the agency↔support variant.
const (
	TicketOpen    = "open"
	TicketPending = "pending"
	TicketClosed  = "closed"
)

// Ticket describes one support-desk conversation thread.
type Ticket struct {
	ID        string
	Subject   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func ticketFromWire(d wire.TicketData) Ticket {
	return Ticket{
		ID:        d.ID,
		Subject:   d.Subject,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ConnState is the connection lifecycle state of a Client.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by Send and MarkAsRead when no room is
// connected. No network attempt is made in that case.
var ErrNotConnected = errors.New("triptalk: not connected")

// MessageHandler is a callback for messages appended to the store.
type MessageHandler func(Message)

// TicketHandler is a callback for ticket lifecycle events. The event is
// wire.TypeTicketCreated or wire.TypeTicketClosed.
type TicketHandler func(event string, t Ticket)

// StateHandler is a callback for connection state transitions.
type StateHandler func(ConnState)

func chainMessageHandler(existing, additional MessageHandler) MessageHandler {
	if existing == nil {
		return additional
	}
	return func(m Message) {
		existing(m)
		additional(m)
	}
}

func chainTicketHandler(existing, additional TicketHandler) TicketHandler {
	if existing == nil {
		return additional
	}
	return func(event string, t Ticket) {
		existing(event, t)
		additional(event, t)
	}
}

func chainStateHandler(existing, additional StateHandler) StateHandler {
	if existing == nil {
		return additional
	}
	return func(s ConnState) {
		existing(s)
		additional(s)
	}
}
