// Package domain defines the core data model of the sales assistant: the
// per-conversation Session with its state-machine mode, the in-progress
// order lines, and the customer contact record accumulated across turns.
//
// Session values are owned by the session store (internal/store). The
// engine always works on a deep copy obtained from the store and writes the
// mutated copy back at the end of a turn, so none of these types need
// internal locking.
package domain

import "time"

// Mode is the state-machine state of a session. The zero value ("") means
// idle: the engine routes the next message through normal intent handling.
type Mode string

const (
	// ModeIdle is the initial state and the state reached after every
	// completed transaction.
	ModeIdle Mode = ""

	// ModeAwaitingPurchaseConfirmation means a fully resolved order batch
	// is waiting for the customer's final yes/no.
	ModeAwaitingPurchaseConfirmation Mode = "awaiting_purchase_confirmation"

	// ModeAwaitingCustomerInfo means an order was confirmed and the bot is
	// collecting name/phone/address across turns.
	ModeAwaitingCustomerInfo Mode = "awaiting_customer_info"

	// ModeHumanCalling means a hand-off was requested; the bot answers with
	// a fixed "please wait" message until an operator arrives or the
	// hand-off deadline expires.
	ModeHumanCalling Mode = "human_calling"

	// ModeHumanChatting means an operator marked the thread as handled;
	// the bot stays silent.
	ModeHumanChatting Mode = "human_chatting"

	// ModeStopBot means an operator silenced the bot for this session.
	ModeStopBot Mode = "stop_bot"
)

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeIdle, ModeAwaitingPurchaseConfirmation, ModeAwaitingCustomerInfo,
		ModeHumanCalling, ModeHumanChatting, ModeStopBot:
		return true
	}
	return false
}

// Silenced reports whether the bot is deliberately mute in this mode.
func (m Mode) Silenced() bool {
	return m == ModeStopBot || m == ModeHumanChatting
}

// LineStatus is the resolution status of an order line.
type LineStatus string

const (
	LinePending   LineStatus = "pending"
	LineConfirmed LineStatus = "confirmed"
	LineFailed    LineStatus = "failed"
)

// FailReason explains why an order line could not be confirmed.
type FailReason string

const (
	FailNone              FailReason = ""
	FailOutOfStock        FailReason = "out_of_stock"
	FailInsufficientStock FailReason = "insufficient_stock"
	FailNotFound          FailReason = "not_found"
)

// OrderLine is one product the customer asked to buy, together with its
// resolution against the catalog. A line only moves pending → confirmed or
// pending → failed, never backward.
type OrderLine struct {
	ProductName string     `json:"product_name"`
	Properties  string     `json:"properties,omitempty"`
	Category    string     `json:"category,omitempty"`
	Quantity    int        `json:"quantity"`
	Status      LineStatus `json:"status"`
	Reason      FailReason `json:"reason,omitempty"`

	// Matched is the catalog record the line resolved to (confirmed lines).
	Matched *Product `json:"matched,omitempty"`
	// Suggestion is a close-but-not-exact catalog match surfaced to the
	// customer when the line failed.
	Suggestion *Product `json:"suggestion,omitempty"`
}

// Key returns the identity used to dedup lines within a pending order.
func (l OrderLine) Key() string { return l.ProductName + "::" + l.Properties }

// FullName renders the line's display name, appending properties when they
// carry information ("0" and blank are sentinel no-value markers in the
// catalog data).
func (l OrderLine) FullName() string {
	if p := l.Properties; p != "" && p != "0" {
		return l.ProductName + " (" + p + ")"
	}
	return l.ProductName
}

// CustomerInfo is the contact record collected across turns. Fields merge
// non-destructively until the order is finalized or cancelled.
type CustomerInfo struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Merge copies non-empty fields of other into c, never blanking a field
// that was already collected.
func (c *CustomerInfo) Merge(other CustomerInfo) {
	if other.Name != "" {
		c.Name = other.Name
	}
	if other.Phone != "" {
		c.Phone = other.Phone
	}
	if other.Address != "" {
		c.Address = other.Address
	}
}

// Complete reports whether all three contact fields have been collected.
func (c CustomerInfo) Complete() bool {
	return c.Name != "" && c.Phone != "" && c.Address != ""
}

// Missing lists the human-readable names of the contact fields still absent.
func (c CustomerInfo) Missing() []string {
	var out []string
	if c.Name == "" {
		out = append(out, "tên")
	}
	if c.Phone == "" {
		out = append(out, "số điện thoại")
	}
	if c.Address == "" {
		out = append(out, "địa chỉ")
	}
	return out
}

// CustomerRecord is the finalized order payload: the completed contact
// record plus the confirmed order lines. It is only constructed once all
// three contact fields are present.
type CustomerRecord struct {
	Name    string      `json:"name"`
	Phone   string      `json:"phone"`
	Address string      `json:"address"`
	Items   []OrderLine `json:"items"`
}

// SearchParams are the structured search parameters extracted by the
// oracle, kept on the session to satisfy "show more" follow-ups.
type SearchParams struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category,omitempty"`
	Properties  string `json:"properties,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
}

// MessagePair is one completed turn: what the user sent and what the bot
// replied (possibly empty while the bot is silenced).
type MessagePair struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Session is the authoritative per-conversation state. It is created lazily
// on the first message for a new identifier and evicted only by the store's
// TTL. All fields default to empty/idle.
type Session struct {
	// Messages is the append-only turn log. Only a bounded suffix is ever
	// read back as oracle context.
	Messages []MessagePair

	Mode Mode

	// LastQuery / PaginationOffset / ShownItemKeys track the current topic
	// for "show more" follow-ups. Any change of LastQuery must reset the
	// offset to 0 and recompute the shown keys.
	LastQuery        *SearchParams
	PaginationOffset int
	ShownItemKeys    map[string]struct{}

	NegativityCount int

	// PendingOrder holds the in-progress order lines; PendingConfirmation
	// is the confirmed subset awaiting the customer's final yes/no.
	PendingOrder        []OrderLine
	PendingConfirmation []OrderLine

	Customer CustomerInfo

	// HandoverDeadline is when an idle hand-off state auto-expires.
	HandoverDeadline time.Time

	// BotEnabled is the per-session admin switch, independent of Mode.
	BotEnabled bool

	// HasPurchased marks a past finalized purchase; warranty questions on
	// such sessions are handed to a human.
	HasPurchased bool

	UpdatedAt time.Time
}

// NewSession returns a session with all fields at their idle defaults.
func NewSession() Session {
	return Session{
		BotEnabled:    true,
		ShownItemKeys: make(map[string]struct{}),
	}
}

// Clone returns a deep copy of the session. The store hands out clones so
// a turn can mutate freely before committing.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]MessagePair(nil), s.Messages...)
	out.PendingOrder = cloneLines(s.PendingOrder)
	out.PendingConfirmation = cloneLines(s.PendingConfirmation)
	if s.LastQuery != nil {
		q := *s.LastQuery
		out.LastQuery = &q
	}
	out.ShownItemKeys = make(map[string]struct{}, len(s.ShownItemKeys))
	for k := range s.ShownItemKeys {
		out.ShownItemKeys[k] = struct{}{}
	}
	return out
}

func cloneLines(in []OrderLine) []OrderLine {
	if in == nil {
		return nil
	}
	out := make([]OrderLine, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Matched != nil {
			p := *out[i].Matched
			out[i].Matched = &p
		}
		if out[i].Suggestion != nil {
			p := *out[i].Suggestion
			out[i].Suggestion = &p
		}
	}
	return out
}

// Append records a completed turn in the message log.
func (s *Session) Append(user, bot string) {
	s.Messages = append(s.Messages, MessagePair{User: user, Bot: bot})
	s.UpdatedAt = time.Now().UTC()
}

// History returns the last n message pairs (the bounded oracle context).
func (s Session) History(n int) []MessagePair {
	if n <= 0 || len(s.Messages) <= n {
		return append([]MessagePair(nil), s.Messages...)
	}
	return append([]MessagePair(nil), s.Messages[len(s.Messages)-n:]...)
}

// ResetTopic clears the current topic: last query, pagination offset and
// the shown-item set.
func (s *Session) ResetTopic() {
	s.LastQuery = nil
	s.PaginationOffset = 0
	s.ShownItemKeys = make(map[string]struct{})
}

// SetTopic stores a new topic query, resetting pagination state as the
// invariants require.
func (s *Session) SetTopic(q SearchParams) {
	s.LastQuery = &q
	s.PaginationOffset = 0
	s.ShownItemKeys = make(map[string]struct{})
}
