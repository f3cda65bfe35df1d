package audit

import (
	"encoding/json"
	"time"

	id "boxinator/pkg/domain"
)

// StatusChange is one immutable row of a shipment's status history. ActorID
// is nil for guest or system initiated changes.
type StatusChange struct {
	ID         id.EntryID    `json:"id"`
	ShipmentID id.ShipmentID `json:"shipment_id"`
	Status     string        `json:"status"`
	ActorID    *id.UserID    `json:"actor_id,omitempty"`
	Note       string        `json:"note,omitempty"`
	At         time.Time     `json:"at"`
}

// Action names an administrative mutation.
type Action string

const (
	ActionUpdateCountryMultiplier Action = "UPDATE_COUNTRY_MULTIPLIER"
	ActionCreateCountry           Action = "CREATE_COUNTRY"
	ActionCreateBoxType           Action = "CREATE_BOX_TYPE"
	ActionUpdateBoxTypePrice      Action = "UPDATE_BOX_TYPE_PRICE"
	ActionUpdateCountry           Action = "UPDATE_COUNTRY"
	ActionUpdateBoxTypeStatus     Action = "UPDATE_BOX_TYPE_STATUS"
	ActionUpdateShipmentStatus    Action = "UPDATE_SHIPMENT_STATUS"
	ActionDeleteShipment          Action = "DELETE_SHIPMENT"
)

// Target types for AdminAction.TargetType.
const (
	TargetCountry  = "country"
	TargetBoxType  = "box_type"
	TargetShipment = "shipment"
)

// AdminAction captures before/after state of an administrator mutation.
type AdminAction struct {
	ID         id.EntryID      `json:"id"`
	ActorID    id.UserID       `json:"actor_id"`
	Action     Action          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	ClientIP   string          `json:"client_ip,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	At         time.Time       `json:"at"`
}

// AdminLogFilter narrows AdminLog queries. Zero fields match everything.
type AdminLogFilter struct {
	ActorID    *id.UserID
	Action     Action
	TargetType string
	From       *time.Time
	To         *time.Time
	id.Pagination
}

// Matches reports whether a satisfies every set field of f.
func (f AdminLogFilter) Matches(a AdminAction) bool {
	if f.ActorID != nil && a.ActorID != *f.ActorID {
		return false
	}
	if f.Action != "" && a.Action != f.Action {
		return false
	}
	if f.TargetType != "" && a.TargetType != f.TargetType {
		return false
	}
	if f.From != nil && a.At.Before(*f.From) {
		return false
	}
	if f.To != nil && a.At.After(*f.To) {
		return false
	}
	return true
}
