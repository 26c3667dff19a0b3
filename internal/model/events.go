package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies a domain event. The set is closed: wire messages with an
// unrecognized type are dropped before dispatch.
type Kind int

const (
	KindUnknown Kind = iota
	KindItemCreated
	KindItemPending
	KindItemApproved
	KindItemRejected
	KindReportCreated
	KindCountersUpdate
	KindPresenceOnline
	KindPresenceOffline
	KindThreadCreated
	KindAnswerPosted
	KindGenericActivity
)

// kindNames maps wire event names to kinds.
var kindNames = map[string]Kind{
	"item-created":     KindItemCreated,
	"item-pending":     KindItemPending,
	"item-approved":    KindItemApproved,
	"item-rejected":    KindItemRejected,
	"report-created":   KindReportCreated,
	"counters-update":  KindCountersUpdate,
	"presence-online":  KindPresenceOnline,
	"presence-offline": KindPresenceOffline,
	"thread-created":   KindThreadCreated,
	"answer-posted":    KindAnswerPosted,
	"generic-activity": KindGenericActivity,
}

var kindStrings = func() map[Kind]string {
	m := make(map[Kind]string, len(kindNames))
	for name, k := range kindNames {
		m[k] = name
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind maps a wire event name to its Kind.
func ParseKind(s string) (Kind, bool) {
	k, ok := kindNames[s]
	return k, ok
}

// Kinds returns every known kind in a stable order. Used to register
// reducer subscriptions exhaustively.
func Kinds() []Kind {
	return []Kind{
		KindItemCreated,
		KindItemPending,
		KindItemApproved,
		KindItemRejected,
		KindReportCreated,
		KindCountersUpdate,
		KindPresenceOnline,
		KindPresenceOffline,
		KindThreadCreated,
		KindAnswerPosted,
		KindGenericActivity,
	}
}

// Event is a decoded push-channel event. Payload holds one of the typed
// payload structs below, matching Kind.
type Event struct {
	Kind       Kind
	DeliveryID string    // server-assigned envelope id, empty if absent
	ReceivedAt time.Time // local receipt timestamp
	Payload    any
}

// ItemCreated announces a new submission entering the moderation queue.
type ItemCreated struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Creator     string `json:"creator"`
	CreatedAt   int64  `json:"createdAt"` // unix seconds
}

// ItemPending carries the same fields as ItemCreated but is only inserted
// when the id is not already queued.
type ItemPending struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Creator     string `json:"creator"`
	CreatedAt   int64  `json:"createdAt"`
}

// ItemApproved removes an item from the queue and counts a new forum.
type ItemApproved struct {
	ID string `json:"id"`
}

// ItemRejected removes an item from the queue.
type ItemRejected struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ReportCreated flags content for review.
type ReportCreated struct {
	ID       string `json:"id"`
	Reason   string `json:"reason"`
	Reporter string `json:"reporter"`
}

// CountersPatch is a partial counter update. Nil fields were absent from
// the wire message and must not overwrite local values.
type CountersPatch struct {
	TotalForums      *int `json:"totalForums"`
	PendingApprovals *int `json:"pendingApprovals"`
	ActiveThreads    *int `json:"activeThreads"`
	FlaggedContent   *int `json:"flaggedContent"`
	ActiveUsers      *int `json:"activeUsers"`
	OnlineUsers      *int `json:"onlineUsers"`
	TotalThreads     *int `json:"totalThreads"`
	TotalAnswers     *int `json:"totalAnswers"`
}

// PresenceOnline announces a user coming online.
type PresenceOnline struct {
	UserID string  `json:"userId"`
	User   UserRef `json:"user"`
}

// UserRef is the user detail block nested in presence messages.
type UserRef struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ProfilePhoto string `json:"profilePhoto"`
}

// PresenceOffline announces a user going offline.
type PresenceOffline struct {
	UserID string `json:"userId"`
}

// ThreadCreated counts a new discussion thread.
type ThreadCreated struct {
	Title     string `json:"title"`
	ForumName string `json:"forumName"`
}

// AnswerPosted counts a new answer.
type AnswerPosted struct {
	ThreadTitle string `json:"threadTitle"`
}

// GenericActivity carries an arbitrary activity entry that touches no
// counters.
type GenericActivity struct {
	ActivityType string          `json:"activityType"`
	Payload      json.RawMessage `json:"payload"`
}

// envelope is the wire framing for push-channel messages.
type envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id"`
	Msg  json.RawMessage `json:"msg"`
}

// ErrUnknownKind is returned by DecodeEvent for event types outside the
// closed set.
type ErrUnknownKind struct {
	Type string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// DecodeEvent parses a raw push-channel message into a typed Event.
func DecodeEvent(data []byte, receivedAt time.Time) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	kind, ok := ParseKind(env.Type)
	if !ok {
		return Event{}, &ErrUnknownKind{Type: env.Type}
	}

	payload, err := decodePayload(kind, env.Msg)
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}

	return Event{
		Kind:       kind,
		DeliveryID: env.ID,
		ReceivedAt: receivedAt,
		Payload:    payload,
	}, nil
}

func decodePayload(kind Kind, msg json.RawMessage) (any, error) {
	if len(msg) == 0 {
		msg = json.RawMessage("{}")
	}

	var (
		payload any
		err     error
	)

	switch kind {
	case KindItemCreated:
		var p ItemCreated
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindItemPending:
		var p ItemPending
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindItemApproved:
		var p ItemApproved
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindItemRejected:
		var p ItemRejected
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindReportCreated:
		var p ReportCreated
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindCountersUpdate:
		var p CountersPatch
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindPresenceOnline:
		var p PresenceOnline
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindPresenceOffline:
		var p PresenceOffline
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindThreadCreated:
		var p ThreadCreated
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindAnswerPosted:
		var p AnswerPosted
		err = json.Unmarshal(msg, &p)
		payload = p
	case KindGenericActivity:
		var p GenericActivity
		err = json.Unmarshal(msg, &p)
		payload = p
	default:
		return nil, fmt.Errorf("no payload decoder for kind %d", kind)
	}

	if err != nil {
		return nil, err
	}
	return payload, nil
}
