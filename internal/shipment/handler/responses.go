package handler

import (
	"time"

	"boxinator/internal/audit"
	"boxinator/internal/shipment/models"
)

type CostResponse struct {
	BaseCost   string `json:"base_cost"`
	Multiplier string `json:"multiplier"`
	FinalCost  string `json:"final_cost"`
	Currency   string `json:"currency"`
}

type ShipmentResponse struct {
	ID         string       `json:"id"`
	TrackingID string       `json:"tracking_id"`
	Status     string       `json:"status"`
	UserID     string       `json:"user_id,omitempty"`
	GuestEmail string       `json:"guest_email,omitempty"`
	Sender     models.Party `json:"sender"`
	Receiver   models.Party `json:"receiver"`
	BoxTypeID  string       `json:"box_type_id"`
	CountryID  string       `json:"country_id"`
	Weight     string       `json:"weight,omitempty"`
	Cost       CostResponse `json:"cost"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type StatusChangeResponse struct {
	Status  string    `json:"status"`
	ActorID string    `json:"actor_id,omitempty"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

type ShipmentDetailResponse struct {
	ShipmentResponse
	History []StatusChangeResponse `json:"history"`
}

type ShipmentPageResponse struct {
	Items  []ShipmentResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type StatusStatsResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Revenue string `json:"revenue"`
}

type StatsResponse struct {
	From     *time.Time            `json:"from,omitempty"`
	To       *time.Time            `json:"to,omitempty"`
	ByStatus []StatusStatsResponse `json:"by_status"`
	Total    int                   `json:"total"`
	Revenue  string                `json:"revenue"`
}

func toShipmentResponse(sh *models.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ID:         sh.ID.String(),
		TrackingID: sh.TrackingID,
		Status:     sh.Status.String(),
		GuestEmail: sh.GuestEmail,
		Sender:     sh.Sender,
		Receiver:   sh.Receiver,
		BoxTypeID:  sh.BoxTypeID.String(),
		CountryID:  sh.CountryID.String(),
		Cost: CostResponse{
			BaseCost:   sh.Cost.BaseCost.StringFixed(2),
			Multiplier: sh.Cost.Multiplier.String(),
			FinalCost:  sh.Cost.FinalCost.StringFixed(2),
			Currency:   sh.Cost.Currency,
		},
		CreatedAt: sh.CreatedAt,
		UpdatedAt: sh.UpdatedAt,
	}
	if sh.UserID != nil {
		resp.UserID = sh.UserID.String()
	}
	if sh.Weight != nil {
		resp.Weight = sh.Weight.String()
	}
	return resp
}

func toDetailResponse(sh *models.ShipmentWithHistory) ShipmentDetailResponse {
	resp := ShipmentDetailResponse{
		ShipmentResponse: toShipmentResponse(sh.Shipment),
		History:          make([]StatusChangeResponse, 0, len(sh.History)),
	}
	for _, h := range sh.History {
		resp.History = append(resp.History, toStatusChangeResponse(h))
	}
	return resp
}

func toStatusChangeResponse(h audit.StatusChange) StatusChangeResponse {
	resp := StatusChangeResponse{Status: h.Status, Note: h.Note, At: h.At}
	if h.ActorID != nil {
		resp.ActorID = h.ActorID.String()
	}
	return resp
}

func toStatsResponse(st *models.Stats) StatsResponse {
	resp := StatsResponse{
		From:     st.From,
		To:       st.To,
		ByStatus: make([]StatusStatsResponse, 0, len(st.ByStatus)),
		Total:    st.Total,
		Revenue:  st.Revenue.StringFixed(2),
	}
	for _, row := range st.ByStatus {
		resp.ByStatus = append(resp.ByStatus, StatusStatsResponse{
			Status:  row.Status.String(),
			Count:   row.Count,
			Revenue: row.Revenue.StringFixed(2),
		})
	}
	return resp
}
