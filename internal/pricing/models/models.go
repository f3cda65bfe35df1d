package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// Currency is the single settlement currency; all costs are in USD.
const Currency = "USD"

// BoxType is a priced package size. BaseCost is never negative.
type BoxType struct {
	ID        id.BoxTypeID    `json:"id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	BaseCost  decimal.Decimal `json:"base_cost"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Country is a destination with a price multiplier. Multiplier is always
// positive; the source country conventionally has 1.0.
type Country struct {
	ID         id.CountryID    `json:"id"`
	Name       string          `json:"name"`
	Code       string          `json:"code"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Active     bool            `json:"active"`
	IsSource   bool            `json:"is_source"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MultiplierChange is an append-only record of a country multiplier edit.
// Previous keeps the overwritten value recoverable.
type MultiplierChange struct {
	ID        id.EntryID      `json:"id"`
	CountryID id.CountryID    `json:"country_id"`
	Previous  decimal.Decimal `json:"previous"`
	New       decimal.Decimal `json:"new"`
	ActorID   id.UserID       `json:"actor_id"`
	Reason    string          `json:"reason,omitempty"`
	ChangedAt time.Time       `json:"changed_at"`
}

// EstimatedDelivery is a business-day range.
type EstimatedDelivery struct {
	MinDays int `json:"min_days"`
	MaxDays int `json:"max_days"`
}

var (
	domesticDelivery      = EstimatedDelivery{MinDays: 2, MaxDays: 5}
	internationalDelivery = EstimatedDelivery{MinDays: 7, MaxDays: 14}
)

// DeliveryEstimate returns the delivery window for shipping to c.
func DeliveryEstimate(c *Country) EstimatedDelivery {
	if c != nil && c.IsSource {
		return domesticDelivery
	}
	return internationalDelivery
}

// CostBreakdown is the priced result for one (box type, country) pair.
type CostBreakdown struct {
	BoxTypeID         id.BoxTypeID      `json:"box_type_id"`
	BoxTypeName       string            `json:"box_type_name"`
	CountryID         id.CountryID      `json:"country_id"`
	CountryName       string            `json:"country_name"`
	BaseCost          decimal.Decimal   `json:"base_cost"`
	Multiplier        decimal.Decimal   `json:"multiplier"`
	FinalCost         decimal.Decimal   `json:"final_cost"`
	Currency          string            `json:"currency"`
	EstimatedDelivery EstimatedDelivery `json:"estimated_delivery"`
}

// FinalCost computes baseCost × multiplier rounded half-up to cents. Round is
// half away from zero, which is half-up for the non-negative values here.
func FinalCost(baseCost, multiplier decimal.Decimal) decimal.Decimal {
	return baseCost.Mul(multiplier).Round(2)
}

var countryCodePattern = regexp.MustCompile(`^[A-Z]{2,3}$`)

// Decimal places the catalog stores. Finer values are rejected rather than
// rounded on write.
const (
	MultiplierPlaces = 4
	BaseCostPlaces   = 2
)

var (
	maxMultiplier = decimal.New(1, 6)
	maxBaseCost   = decimal.New(1, 10)
)

// MultiplierProblem describes why m is not a storable multiplier, or returns "".
func MultiplierProblem(m decimal.Decimal) string {
	switch {
	case !m.IsPositive():
		return "must be greater than 0"
	case !m.Equal(m.Truncate(MultiplierPlaces)):
		return "must have at most 4 decimal places"
	case m.GreaterThanOrEqual(maxMultiplier):
		return "must be less than " + maxMultiplier.String()
	}
	return ""
}

// BaseCostProblem describes why c is not a storable base cost, or returns "".
func BaseCostProblem(c decimal.Decimal) string {
	switch {
	case c.IsNegative():
		return "must not be negative"
	case !c.Equal(c.Truncate(BaseCostPlaces)):
		return "must have at most 2 decimal places"
	case c.GreaterThanOrEqual(maxBaseCost):
		return "must be less than " + maxBaseCost.String()
	}
	return ""
}

// CreateCountryRequest is the admin payload for a new destination.
type CreateCountryRequest struct {
	Name       string          `json:"name"`
	Code       string          `json:"code"`
	Multiplier decimal.Decimal `json:"multiplier"`
	IsSource   bool            `json:"is_source"`
	Inactive   bool            `json:"inactive"`
}

func (r *CreateCountryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

// Validate reports every violated field at once.
func (r *CreateCountryRequest) Validate() error {
	var v []dErrors.FieldViolation
	if r.Name == "" {
		v = append(v, dErrors.FieldViolation{Field: "name", Message: "is required"})
	}
	if !countryCodePattern.MatchString(r.Code) {
		v = append(v, dErrors.FieldViolation{Field: "code", Message: "must be 2-3 letters"})
	}
	if problem := MultiplierProblem(r.Multiplier); problem != "" {
		v = append(v, dErrors.FieldViolation{Field: "multiplier", Message: problem})
	}
	if len(v) > 0 {
		return dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return nil
}

// CreateBoxTypeRequest is the admin payload for a new box size.
type CreateBoxTypeRequest struct {
	Name     string          `json:"name"`
	Size     string          `json:"size"`
	BaseCost decimal.Decimal `json:"base_cost"`
}

func (r *CreateBoxTypeRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Size = strings.TrimSpace(r.Size)
}

func (r *CreateBoxTypeRequest) Validate() error {
	var v []dErrors.FieldViolation
	if r.Name == "" {
		v = append(v, dErrors.FieldViolation{Field: "name", Message: "is required"})
	}
	if r.Size == "" {
		v = append(v, dErrors.FieldViolation{Field: "size", Message: "is required"})
	}
	if problem := BaseCostProblem(r.BaseCost); problem != "" {
		v = append(v, dErrors.FieldViolation{Field: "base_cost", Message: problem})
	}
	if len(v) > 0 {
		return dErrors.WithViolations(dErrors.CodeValidation, v)
	}
	return nil
}

// UpdateCountryRequest edits a destination's descriptive fields and its
// availability. Nil fields are left alone. The multiplier is changed through
// its own logged operation.
type UpdateCountryRequest struct {
	Name     *string `json:"name,omitempty"`
	IsSource *bool   `json:"is_source,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

func (r *UpdateCountryRequest) Normalize() {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		r.Name = &name
	}
}

func (r *UpdateCountryRequest) Validate() error {
	if r.Name == nil && r.IsSource == nil && r.Active == nil {
		return dErrors.New(dErrors.CodeBadRequest, "at least one of name, is_source or active is required")
	}
	if r.Name != nil && *r.Name == "" {
		return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "name", Message: "is required"},
		})
	}
	return nil
}

// Apply returns c with the requested fields replaced.
func (r UpdateCountryRequest) Apply(c Country) Country {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.IsSource != nil {
		c.IsSource = *r.IsSource
	}
	if r.Active != nil {
		c.Active = *r.Active
	}
	return c
}
