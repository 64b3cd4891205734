// Package store implements the client-side view of one conversation: an
// ordered message list with three mutation modes (bulk replace for history,
// append for new inbound messages, patch-by-temp-id for reconciling
// optimistic sends) plus the bounded dedup window that discards redelivered
// messages.
//
// The store is a deterministic reducer over inbound events and performs no
// I/O, so the reconciliation rules are testable without a live socket. It is
// not safe for concurrent use; the client serialises access.
package store

import (
	"time"

	"github.com/triptalk/triptalk-go-sdk/wire"
)

// Message is one entry in the conversation as shown to the user. Pending is
// true only while the entry's TempID has not yet been matched to a server id.
type Message struct {
	ID         string
	TempID     string
	Content    string
	SenderID   string
	ReceiverID string
	PostID     string
	PostType   string
	TicketID   string
	CreatedAt  time.Time
	IsRead     bool
	Pending    bool
}

// FromWire converts a wire message into a finalized store entry.
func FromWire(d wire.MessageData) Message {
	return Message{
		ID:         d.ID,
		Content:    d.Content,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		PostID:     d.PostID,
		PostType:   d.PostType,
		TicketID:   d.TicketID,
		CreatedAt:  d.CreatedAt,
		IsRead:     d.IsRead,
	}
}

// Store holds the ordered messages of the active room, the registry of
// temp ids awaiting server acknowledgment, and the dedup window.
//
// Invariant: at most one entry exists per logical message — either the
// pending (temp-id keyed) version or the finalized (id keyed) version,
// never both.
type Store struct {
	messages []Message
	pending  map[string]struct{}
	dedup    *DedupWindow
}

// New creates an empty store.
func New() *Store {
	return &Store{
		pending: make(map[string]struct{}),
		dedup:   NewDedupWindow(),
	}
}

// AppendPending registers m.TempID as awaiting acknowledgment and appends m
// with Pending set. The caller assigns the provisional CreatedAt.
func (s *Store) AppendPending(m Message) {
	m.Pending = true
	s.pending[m.TempID] = struct{}{}
	s.messages = append(s.messages, m)
}

// ApplyInbound folds one server-delivered message into the store. It returns
// true if the store changed, false if the message was a duplicate.
//
// Resolution order: a registered temp id patches the matching pending entry
// in place (or appends if the entry vanished, so the send is not silently
// lost); an already-seen id is dropped; everything else appends.
func (s *Store) ApplyInbound(d wire.MessageData) bool {
	if d.TempID != "" {
		if _, ok := s.pending[d.TempID]; ok {
			delete(s.pending, d.TempID)
			s.dedup.Record(d.ID)
			for i := range s.messages {
				if s.messages[i].TempID == d.TempID {
					s.messages[i] = FromWire(d)
					return true
				}
			}
			// Pending entry vanished (history replaced it mid-flight):
			// append the finalized copy instead of dropping the send.
			s.messages = append(s.messages, FromWire(d))
			return true
		}
	}

	if d.ID != "" && s.dedup.Seen(d.ID) {
		return false
	}

	s.dedup.Record(d.ID)
	s.messages = append(s.messages, FromWire(d))
	return true
}

// ReplaceHistory swaps the entire message list for the server's ordered
// history. When customerID is non-empty, rows are filtered to that customer's
// thread: a row is kept if its counterpart (the participant that is not
// selfID) is the customer or selfID itself. The dedup window is re-seeded
// from the retained rows.
//
// This is destructive with respect to pending entries appended before the
// history arrived; their temp ids stay registered so a late acknowledgment
// still lands via ApplyInbound.
func (s *Store) ReplaceHistory(rows []wire.MessageData, selfID, customerID string) {
	s.messages = s.messages[:0]
	s.dedup.Reset()

	for _, r := range rows {
		if customerID != "" {
			counterpart := r.SenderID
			if counterpart == selfID {
				counterpart = r.ReceiverID
			}
			if counterpart != customerID && counterpart != selfID {
				continue
			}
		}
		s.dedup.Record(r.ID)
		s.messages = append(s.messages, FromWire(r))
	}
}

// MarkRead flips the local read flag on the message with the given id.
// Returns false if no such message exists.
func (s *Store) MarkRead(id string) bool {
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].IsRead = true
			return true
		}
	}
	return false
}

// Clear wipes messages, the pending registry, and the dedup window. Used
// when the caller leaves a room or switches to a different one.
func (s *Store) Clear() {
	s.messages = s.messages[:0]
	s.pending = make(map[string]struct{})
	s.dedup.Reset()
}

// Messages returns a copy of the ordered message list, oldest first.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the store.
func (s *Store) Len() int { return len(s.messages) }

// PendingCount returns the number of sends awaiting acknowledgment.
func (s *Store) PendingCount() int { return len(s.pending) }

// SeenCount returns the number of ids tracked by the dedup window.
func (s *Store) SeenCount() int { return s.dedup.Len() }
