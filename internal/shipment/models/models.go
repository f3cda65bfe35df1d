package models

import (
	"time"

	"github.com/shopspring/decimal"

	"boxinator/internal/audit"
	id "boxinator/pkg/domain"
)

// Party is a sender or receiver snapshot. Contact means an email, a phone
// number, or both.
type Party struct {
	Name       string `json:"name" validate:"required,max=200"`
	Address    string `json:"address" validate:"required,max=300"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
	Email      string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Cost is the price recorded at creation. It never changes afterwards.
type Cost struct {
	BaseCost   decimal.Decimal `json:"base_cost"`
	Multiplier decimal.Decimal `json:"multiplier"`
	FinalCost  decimal.Decimal `json:"final_cost"`
	Currency   string          `json:"currency"`
}

// Shipment is owned by a user or, when UserID is nil, by a guest reachable
// at GuestEmail.
type Shipment struct {
	ID         id.ShipmentID    `json:"id"`
	UserID     *id.UserID       `json:"user_id,omitempty"`
	GuestEmail string           `json:"guest_email,omitempty"`
	Sender     Party            `json:"sender"`
	Receiver   Party            `json:"receiver"`
	BoxTypeID  id.BoxTypeID     `json:"box_type_id"`
	CountryID  id.CountryID     `json:"country_id"`
	Cost       Cost             `json:"cost"`
	Weight     *decimal.Decimal `json:"weight,omitempty"`
	TrackingID string           `json:"tracking_id"`
	Status     Status           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsOwnedBy reports whether userID owns s. Guest shipments have no owner.
func (s *Shipment) IsOwnedBy(userID id.UserID) bool {
	return s.UserID != nil && !userID.IsNil() && *s.UserID == userID
}

// ContactEmail is where notifications for s are sent.
func (s *Shipment) ContactEmail() string {
	if s.UserID == nil {
		return s.GuestEmail
	}
	return s.Sender.Email
}

// ShipmentWithHistory is a shipment and its status history, oldest first.
type ShipmentWithHistory struct {
	Shipment *Shipment            `json:"shipment"`
	History  []audit.StatusChange `json:"history"`
}

// CostAudit records how a shipment's cost was computed.
type CostAudit struct {
	ID         id.EntryID      `json:"id"`
	ShipmentID id.ShipmentID   `json:"shipment_id"`
	BoxTypeID  id.BoxTypeID    `json:"box_type_id"`
	CountryID  id.CountryID    `json:"country_id"`
	BaseCost   decimal.Decimal `json:"base_cost"`
	Multiplier decimal.Decimal `json:"multiplier"`
	FinalCost  decimal.Decimal `json:"final_cost"`
	Currency   string          `json:"currency"`
	ComputedAt time.Time       `json:"computed_at"`
}

// Filter narrows ListShipments. Nil fields match everything.
type Filter struct {
	Status    *Status
	CountryID *id.CountryID
	UserID    *id.UserID
	From      *time.Time
	To        *time.Time
	id.Pagination
}

// Matches reports whether s passes every set criterion.
func (f Filter) Matches(s *Shipment) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.CountryID != nil && s.CountryID != *f.CountryID {
		return false
	}
	if f.UserID != nil && (s.UserID == nil || *s.UserID != *f.UserID) {
		return false
	}
	if f.From != nil && s.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && s.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// TrackingEvent is a status change stripped of actor and note.
type TrackingEvent struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// TrackingView is the public answer to a tracking lookup.
type TrackingView struct {
	TrackingID  string          `json:"tracking_id"`
	Status      Status          `json:"status"`
	Destination string          `json:"destination"`
	CreatedAt   time.Time       `json:"created_at"`
	History     []TrackingEvent `json:"history"`
}

// StatusStats aggregates shipments in one status.
type StatusStats struct {
	Status  Status          `json:"status"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Stats summarizes shipments created in [From, To].
type Stats struct {
	From     *time.Time      `json:"from,omitempty"`
	To       *time.Time      `json:"to,omitempty"`
	ByStatus []StatusStats   `json:"by_status"`
	Total    int             `json:"total"`
	Revenue  decimal.Decimal `json:"revenue"`
}
