package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"boxinator/internal/shipment/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// CreateShipmentRequest is the body of POST /shipments. A body with a sender
// is a guest submission; without one the sender comes from the profile.
type CreateShipmentRequest struct {
	Sender    *models.Party    `json:"sender,omitempty"`
	Receiver  models.Party     `json:"receiver"`
	BoxTypeID string           `json:"box_type_id"`
	CountryID string           `json:"country_id"`
	Weight    *decimal.Decimal `json:"weight,omitempty"`

	boxTypeID id.BoxTypeID
	countryID id.CountryID
}

func (r *CreateShipmentRequest) Normalize() {
	r.BoxTypeID = strings.TrimSpace(r.BoxTypeID)
	r.CountryID = strings.TrimSpace(r.CountryID)
}

// Validate never fails. An unparseable reference becomes the zero id, which
// the service reports alongside every party problem in one response.
func (r *CreateShipmentRequest) Validate() error {
	r.boxTypeID, _ = id.ParseBoxTypeID(r.BoxTypeID)
	r.countryID, _ = id.ParseCountryID(r.CountryID)
	return nil
}

func (r *CreateShipmentRequest) toDomain() models.CreateRequest {
	details := models.ShipmentDetails{
		Receiver:  r.Receiver,
		BoxTypeID: r.boxTypeID,
		CountryID: r.countryID,
		Weight:    r.Weight,
	}
	if r.Sender != nil {
		return models.GuestShipmentRequest{Sender: *r.Sender, ShipmentDetails: details}
	}
	return models.AuthenticatedShipmentRequest{ShipmentDetails: details}
}

// UpdateStatusRequest is the body of PATCH /shipments/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`

	status models.Status
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	r.Note = strings.TrimSpace(r.Note)
}

func (r *UpdateStatusRequest) Validate() error {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.status = status
	return nil
}

// parseFilter reads list filters from the query string, collecting every bad
// parameter.
func parseFilter(q url.Values) (models.Filter, error) {
	var f models.Filter
	var v []dErrors.FieldViolation

	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			v = append(v, dErrors.FieldViolation{Field: "status", Message: "is not a known status"})
		} else {
			f.Status = &status
		}
	}
	if raw := q.Get("country_id"); raw != "" {
		countryID, err := id.ParseCountryID(raw)
		if err != nil {
			v = append(v, dErrors.FieldViolation{Field: "country_id", Message: "is not a valid identifier"})
		} else {
			f.CountryID = &countryID
		}
	}
	if raw := q.Get("user_id"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			v = append(v, dErrors.FieldViolation{Field: "user_id", Message: "is not a valid identifier"})
		} else {
			f.UserID = &userID
		}
	}
	var err error
	if f.From, err = parseTime(q, "from"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "from", Message: "must be an RFC 3339 timestamp"})
	}
	if f.To, err = parseTime(q, "to"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "to", Message: "must be an RFC 3339 timestamp"})
	}
	if f.Limit, err = parseInt(q, "limit"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "limit", Message: "must be a non-negative integer"})
	}
	if f.Offset, err = parseInt(q, "offset"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "offset", Message: "must be a non-negative integer"})
	}

	if len(v) > 0 {
		return models.Filter{}, dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return f, nil
}

// parseRange reads the optional from/to window used by stats.
func parseRange(q url.Values) (from, to *time.Time, err error) {
	var v []dErrors.FieldViolation
	if from, err = parseTime(q, "from"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "from", Message: "must be an RFC 3339 timestamp"})
	}
	if to, err = parseTime(q, "to"); err != nil {
		v = append(v, dErrors.FieldViolation{Field: "to", Message: "must be an RFC 3339 timestamp"})
	}
	if len(v) > 0 {
		return nil, nil, dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return from, to, nil
}

func parseTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
