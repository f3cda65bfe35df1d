package handler

import (
	"time"

	"boxinator/internal/pricing/models"
)

type CountryResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	Multiplier string `json:"multiplier"`
	IsSource   bool   `json:"is_source"`
	Active     bool   `json:"active"`
}

type BoxTypeResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	BaseCost string `json:"base_cost"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

type CostBreakdownResponse struct {
	BoxTypeID         string                   `json:"box_type_id"`
	BoxTypeName       string                   `json:"box_type_name"`
	CountryID         string                   `json:"country_id"`
	CountryName       string                   `json:"country_name"`
	BaseCost          string                   `json:"base_cost"`
	Multiplier        string                   `json:"multiplier"`
	FinalCost         string                   `json:"final_cost"`
	Currency          string                   `json:"currency"`
	EstimatedDelivery models.EstimatedDelivery `json:"estimated_delivery"`
}

type MultiplierChangeResponse struct {
	ID        string    `json:"id"`
	Previous  string    `json:"previous"`
	New       string    `json:"new"`
	ActorID   string    `json:"actor_id"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func toCountryResponse(c *models.Country) CountryResponse {
	return CountryResponse{
		ID:         c.ID.String(),
		Name:       c.Name,
		Code:       c.Code,
		Multiplier: c.Multiplier.String(),
		IsSource:   c.IsSource,
		Active:     c.Active,
	}
}

func toBoxTypeResponse(b *models.BoxType) BoxTypeResponse {
	return BoxTypeResponse{
		ID:       b.ID.String(),
		Name:     b.Name,
		Size:     b.Size,
		BaseCost: b.BaseCost.StringFixed(2),
		Currency: models.Currency,
		Active:   b.Active,
	}
}

func toCostBreakdownResponse(b *models.CostBreakdown) CostBreakdownResponse {
	return CostBreakdownResponse{
		BoxTypeID:         b.BoxTypeID.String(),
		BoxTypeName:       b.BoxTypeName,
		CountryID:         b.CountryID.String(),
		CountryName:       b.CountryName,
		BaseCost:          b.BaseCost.StringFixed(2),
		Multiplier:        b.Multiplier.String(),
		FinalCost:         b.FinalCost.StringFixed(2),
		Currency:          b.Currency,
		EstimatedDelivery: b.EstimatedDelivery,
	}
}

func toMultiplierChangeResponses(changes []models.MultiplierChange) []MultiplierChangeResponse {
	out := make([]MultiplierChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, MultiplierChangeResponse{
			ID:        c.ID.String(),
			Previous:  c.Previous.String(),
			New:       c.New.String(),
			ActorID:   c.ActorID.String(),
			Reason:    c.Reason,
			ChangedAt: c.ChangedAt,
		})
	}
	return out
}
