package models

import (
	dErrors "boxinator/pkg/domain-errors"
)

// Status is the lifecycle state of a shipment.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusReceived  Status = "RECEIVED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusCreated, StatusReceived, StatusInTransit, StatusDelivered, StatusCancelled}

// transitions is the complete set of legal edges. Anything absent, including
// a status to itself, is illegal.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusReceived, StatusCancelled},
	StatusReceived:  {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusDelivered},
}

// ParseStatus accepts the canonical upper-case status codes only.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "status", Message: "must be one of CREATED, RECEIVED, IN_TRANSIT, DELIVERED, CANCELLED"},
		})
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusReceived, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsOwnerCancellation reports whether from -> to is the one edge a
// non-administrator owner may apply.
func IsOwnerCancellation(from, to Status) bool {
	return to == StatusCancelled && (from == StatusCreated || from == StatusReceived)
}
