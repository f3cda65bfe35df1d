package handler

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// CostPreviewRequest is the body of POST /cost/preview.
type CostPreviewRequest struct {
	BoxTypeID string `json:"box_type_id"`
	CountryID string `json:"country_id"`

	boxTypeID id.BoxTypeID
	countryID id.CountryID
}

func (r *CostPreviewRequest) Normalize() {
	r.BoxTypeID = strings.TrimSpace(r.BoxTypeID)
	r.CountryID = strings.TrimSpace(r.CountryID)
}

// Validate parses both references. Unparseable ids are reported the same
// way the calculator reports unknown ones.
func (r *CostPreviewRequest) Validate() error {
	var v []dErrors.FieldViolation
	boxTypeID, err := id.ParseBoxTypeID(r.BoxTypeID)
	if err != nil {
		v = append(v, dErrors.FieldViolation{Field: "box_type_id", Message: "is not a valid identifier"})
	}
	countryID, err := id.ParseCountryID(r.CountryID)
	if err != nil {
		v = append(v, dErrors.FieldViolation{Field: "country_id", Message: "is not a valid identifier"})
	}
	if len(v) > 0 {
		return dErrors.WithViolations(dErrors.CodeInvalidReference, v)
	}
	r.boxTypeID, r.countryID = boxTypeID, countryID
	return nil
}

// UpdateMultiplierRequest is the body of PATCH /admin/countries/{id}/multiplier.
type UpdateMultiplierRequest struct {
	Multiplier decimal.Decimal `json:"multiplier"`
	Reason     string          `json:"reason"`
}

func (r *UpdateMultiplierRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *UpdateMultiplierRequest) Validate() error {
	if utf8.RuneCountInString(r.Reason) > 500 {
		return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "reason", Message: "must be at most 500 characters"},
		})
	}
	return nil
}

// CorrectPriceRequest is the body of PATCH /admin/box-types/{id}/price.
type CorrectPriceRequest struct {
	BaseCost decimal.Decimal `json:"base_cost"`
}

func (r *CorrectPriceRequest) Normalize() {}

func (r *CorrectPriceRequest) Validate() error { return nil }

// SetActiveRequest is the body of PATCH /admin/box-types/{id}/active.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

func (r *SetActiveRequest) Normalize() {}

func (r *SetActiveRequest) Validate() error {
	if r.Active == nil {
		return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "active", Message: "is required"},
		})
	}
	return nil
}
