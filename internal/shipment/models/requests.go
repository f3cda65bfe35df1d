package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
)

// CreateRequest is either a GuestShipmentRequest or an
// AuthenticatedShipmentRequest.
type CreateRequest interface {
	Details() ShipmentDetails
	isCreateRequest()
}

// ShipmentDetails are the fields every creation request carries.
type ShipmentDetails struct {
	Receiver  Party            `json:"receiver"`
	BoxTypeID id.BoxTypeID     `json:"box_type_id"`
	CountryID id.CountryID     `json:"country_id"`
	Weight    *decimal.Decimal `json:"weight,omitempty"`
}

// GuestShipmentRequest is submitted without an account; the sender and its
// email are mandatory.
type GuestShipmentRequest struct {
	Sender Party `json:"sender"`
	ShipmentDetails
}

// AuthenticatedShipmentRequest takes the sender from the user's profile.
type AuthenticatedShipmentRequest struct {
	ShipmentDetails
}

func (r GuestShipmentRequest) Details() ShipmentDetails         { return r.ShipmentDetails }
func (r AuthenticatedShipmentRequest) Details() ShipmentDetails { return r.ShipmentDetails }

func (GuestShipmentRequest) isCreateRequest()         {}
func (AuthenticatedShipmentRequest) isCreateRequest() {}

// Validate reports every violated field of a guest request.
func (r GuestShipmentRequest) Validate() error {
	v := PartyViolations("sender", r.Sender, true)
	v = append(v, r.ShipmentDetails.violations()...)
	return asValidationError(v)
}

// Validate reports every violated field of an authenticated request.
func (r AuthenticatedShipmentRequest) Validate() error {
	return asValidationError(r.ShipmentDetails.violations())
}

func (d ShipmentDetails) violations() []dErrors.FieldViolation {
	v := PartyViolations("receiver", d.Receiver, false)
	if d.Weight != nil && !d.Weight.IsPositive() {
		v = append(v, dErrors.FieldViolation{Field: "weight", Message: "must be greater than 0"})
	}
	return v
}

func asValidationError(v []dErrors.FieldViolation) error {
	if len(v) == 0 {
		return nil
	}
	return dErrors.WithViolations(dErrors.CodeValidation, v)
}

// Normalize trims every field and lower-cases the email.
func (p *Party) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	p.City = strings.TrimSpace(p.City)
	p.PostalCode = strings.TrimSpace(p.PostalCode)
	p.Country = strings.TrimSpace(p.Country)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(partyContact, Party{})
	return v
}

// partyContact requires at least one way to reach the party.
func partyContact(sl validator.StructLevel) {
	p := sl.Current().Interface().(Party)
	if p.Email == "" && p.Phone == "" {
		sl.ReportError(p.Email, "contact", "Email", "contact", "")
	}
}

// PartyViolations validates p and returns one violation per bad field, each
// named prefix.field. With requireEmail the email must be present whatever
// the phone says.
func PartyViolations(prefix string, p Party, requireEmail bool) []dErrors.FieldViolation {
	var out []dErrors.FieldViolation
	var verrs validator.ValidationErrors
	if err := validate.Struct(p); errors.As(err, &verrs) {
		for _, fe := range verrs {
			if requireEmail && (fe.Field() == "email" || fe.Field() == "contact") {
				continue
			}
			out = append(out, dErrors.FieldViolation{Field: prefix + "." + fe.Field(), Message: violationMessage(fe)})
		}
	}
	if requireEmail {
		if err := validate.Var(p.Email, "required,email,max=254"); errors.As(err, &verrs) {
			out = append(out, dErrors.FieldViolation{Field: prefix + ".email", Message: violationMessage(verrs[0])})
		}
	}
	return out
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "contact":
		return "an email or phone number is required"
	default:
		return "is invalid"
	}
}

func (r *GuestShipmentRequest) Normalize() {
	r.Sender.Normalize()
	r.Receiver.Normalize()
}

func (r *AuthenticatedShipmentRequest) Normalize() {
	r.Receiver.Normalize()
}
