package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "boxinator/pkg/domain-errors"
)

// Typed identifiers. Each is a distinct named type over uuid.UUID so a
// ShipmentID can never be passed where a CountryID is expected.
type (
	UserID     uuid.UUID
	ShipmentID uuid.UUID
	BoxTypeID  uuid.UUID
	CountryID  uuid.UUID
	EntryID    uuid.UUID
)

// maxIDLength bounds raw input before it reaches the UUID parser.
const maxIDLength = 64

func parseUUID(kind, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(raw) > maxIDLength || !utf8.ValidString(raw) || strings.ContainsRune(raw, 0) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

// ParseUserID parses a user id from external input.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID("user id", raw)
	return UserID(u), err
}

// ParseShipmentID parses a shipment id from external input.
func ParseShipmentID(raw string) (ShipmentID, error) {
	u, err := parseUUID("shipment id", raw)
	return ShipmentID(u), err
}

// ParseBoxTypeID parses a box type id from external input.
func ParseBoxTypeID(raw string) (BoxTypeID, error) {
	u, err := parseUUID("box type id", raw)
	return BoxTypeID(u), err
}

// ParseCountryID parses a country id from external input.
func ParseCountryID(raw string) (CountryID, error) {
	u, err := parseUUID("country id", raw)
	return CountryID(u), err
}

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ShipmentID) String() string { return uuid.UUID(id).String() }
func (id BoxTypeID) String() string  { return uuid.UUID(id).String() }
func (id CountryID) String() string  { return uuid.UUID(id).String() }
func (id EntryID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ShipmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BoxTypeID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id CountryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText keeps JSON output as the canonical UUID string.
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ShipmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BoxTypeID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id CountryID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error     { return unmarshalID((*uuid.UUID)(id), b) }
func (id *ShipmentID) UnmarshalText(b []byte) error { return unmarshalID((*uuid.UUID)(id), b) }
func (id *BoxTypeID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(id), b) }
func (id *CountryID) UnmarshalText(b []byte) error  { return unmarshalID((*uuid.UUID)(id), b) }
func (id *EntryID) UnmarshalText(b []byte) error    { return unmarshalID((*uuid.UUID)(id), b) }

func unmarshalID(dst *uuid.UUID, b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid identifier")
	}
	*dst = parsed
	return nil
}

// NewShipmentID, NewBoxTypeID, NewCountryID and NewEntryID mint random identifiers.
func NewShipmentID() ShipmentID { return ShipmentID(uuid.New()) }
func NewBoxTypeID() BoxTypeID   { return BoxTypeID(uuid.New()) }
func NewCountryID() CountryID   { return CountryID(uuid.New()) }
func NewEntryID() EntryID       { return EntryID(uuid.New()) }
