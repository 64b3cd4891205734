package triptalk

import "net/url"

// RoomSelector identifies one logical conversation. The post variant scopes
// a customer↔agency thread to a listing: PostID and PostType are required,
// CustomerID narrows to a single customer thread (the agency side sets it;
// customers connect to their own thread without it). The ticket variant
// scopes an agency↔support thread: PostID is empty and TicketID names the
// ticket, or is empty when connecting to the support desk before any ticket
// exists.
type RoomSelector struct {
	PostID     string
	PostType   string // e.g. "trip", "hotel"
	CustomerID string
	TicketID   string
}

// IsTicket reports whether the selector addresses the support variant.
func (r RoomSelector) IsTicket() bool { return r.PostID == "" }

// Key derives the stable room identifier. Equal selectors always produce
// equal keys; selectors differing only in CustomerID produce distinct keys
// so two customer threads over the same post never share a connection,
// dedup window, or pending registry.
func (r RoomSelector) Key() string {
	if r.IsTicket() {
		return "ticket:" + r.TicketID
	}
	k := "post:" + r.PostID + ":" + r.PostType
	if r.CustomerID != "" {
		k += ":" + r.CustomerID
	}
	return k
}

// query renders the connection URL parameters for this selector. Reconnects
// reuse the same parameter set computed from the still-active selector.
func (r RoomSelector) query(q url.Values, userID, role, token string) {
	q.Set("userId", userID)
	q.Set("token", token)
	if r.IsTicket() {
		if r.TicketID != "" {
			q.Set("ticketId", r.TicketID)
		}
		q.Set("userRole", role)
		return
	}
	q.Set("postId", r.PostID)
	q.Set("postType", r.PostType)
	if r.CustomerID != "" {
		q.Set("customerId", r.CustomerID)
	}
}
