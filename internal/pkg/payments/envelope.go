package payments

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// EventClass groups provider event names by their effect on a payment.
type EventClass int

const (
	EventOther EventClass = iota
	EventApproved
	EventFailed
)

func (c EventClass) String() string {
	switch c {
	case EventApproved:
		return "approved"
	case EventFailed:
		return "failed"
	default:
		return "other"
	}
}

// Outcome maps the class onto the settlement tri-state.
func (c EventClass) Outcome() Outcome {
	switch c {
	case EventApproved:
		return OutcomeApproved
	case EventFailed:
		return OutcomeDeclined
	default:
		return OutcomeIndeterminate
	}
}

// ClassifyEvent maps a provider event name onto an EventClass.
func ClassifyEvent(eventType string) EventClass {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "transaction.approved", "transaction.completed", "transaction.success":
		return EventApproved
	case "transaction.declined", "transaction.failed", "transaction.canceled":
		return EventFailed
	default:
		return EventOther
	}
}

// Envelope is the parsed form of a provider webhook body.
type Envelope struct {
	EventID       string
	EventType     string
	TransactionID string
	Reference     string
	Status        string
	Amount        *decimal.Decimal
	CustomerEmail string
	CustomerPhone string
}

// Class classifies the envelope's event name.
func (e *Envelope) Class() EventClass {
	return ClassifyEvent(e.EventType)
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type rawEnvelope struct {
	ID     flexString      `json:"id"`
	Event  string          `json:"event"`
	Name   string          `json:"name"`
	Entity json.RawMessage `json:"entity"`
	Object json.RawMessage `json:"object"`
}

type rawEntity struct {
	ID             flexString       `json:"id"`
	Reference      string           `json:"reference"`
	CustomMetadata json.RawMessage  `json:"custom_metadata"`
	Status         string           `json:"status"`
	Amount         *decimal.Decimal `json:"amount"`
	Customer       *struct {
		Email       string          `json:"email"`
		PhoneNumber json.RawMessage `json:"phone_number"`
	} `json:"customer"`
}

// ParseEnvelope decodes `{event|name, id, entity|object{...}}`. A body without
// entity or object is treated as the entity itself.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	entityRaw := env.Entity
	if isEmptyJSON(entityRaw) {
		entityRaw = env.Object
	}
	if isEmptyJSON(entityRaw) {
		entityRaw = raw
	}

	var entity rawEntity
	if err := json.Unmarshal(entityRaw, &entity); err != nil {
		return nil, err
	}

	out := &Envelope{
		EventID:       string(env.ID),
		EventType:     strings.TrimSpace(env.Event),
		TransactionID: string(entity.ID),
		Reference:     strings.TrimSpace(entity.Reference),
		Status:        strings.TrimSpace(entity.Status),
		Amount:        entity.Amount,
	}
	if out.EventType == "" {
		out.EventType = strings.TrimSpace(env.Name)
	}
	if out.Reference == "" {
		out.Reference = metadataReference(entity.CustomMetadata)
	}
	if entity.Customer != nil {
		out.CustomerEmail = strings.TrimSpace(entity.Customer.Email)
		out.CustomerPhone = phoneNumber(entity.Customer.PhoneNumber)
	}
	return out, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func metadataReference(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var meta struct {
		Reference flexString `json:"reference"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return string(meta.Reference)
}

// phoneNumber accepts {"number": "..."} as well as a bare string.
func phoneNumber(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var obj struct {
		Number flexString `json:"number"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return string(obj.Number)
	}
	var s flexString
	if err := json.Unmarshal(raw, &s); err == nil {
		return string(s)
	}
	return ""
}
