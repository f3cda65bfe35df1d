package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "boxinator/pkg/domain-errors"
)

func validParty() Party {
	return Party{
		Name:       "Ada Lovelace",
		Address:    "12 Analytical Row",
		City:       "London",
		PostalCode: "NW1 6XE",
		Country:    "United Kingdom",
		Email:      "ada@example.com",
	}
}

func fields(v []dErrors.FieldViolation) []string {
	out := make([]string, 0, len(v))
	for _, f := range v {
		out = append(out, f.Field)
	}
	return out
}

func TestTransitionTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusCreated, StatusReceived}:    true,
		{StatusCreated, StatusCancelled}:   true,
		{StatusReceived, StatusInTransit}:  true,
		{StatusReceived, StatusCancelled}:  true,
		{StatusInTransit, StatusDelivered}: true,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.Equal(t, legal[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusDelivered, StatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range AllStatuses {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, StatusInTransit.IsTerminal())
}

func TestOwnerCancellation(t *testing.T) {
	assert.True(t, IsOwnerCancellation(StatusCreated, StatusCancelled))
	assert.True(t, IsOwnerCancellation(StatusReceived, StatusCancelled))
	assert.False(t, IsOwnerCancellation(StatusInTransit, StatusCancelled))
	assert.False(t, IsOwnerCancellation(StatusCreated, StatusReceived))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("IN_TRANSIT")
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, s)

	_, err = ParseStatus("in_transit")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGuestRequestValidation(t *testing.T) {
	t.Run("missing sender names every field including the email", func(t *testing.T) {
		req := GuestShipmentRequest{ShipmentDetails: ShipmentDetails{Receiver: validParty()}}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		got := fields(dErrors.ViolationsOf(err))
		assert.ElementsMatch(t, []string{"sender.name", "sender.address", "sender.city", "sender.postal_code", "sender.country", "sender.email"}, got)
	})

	t.Run("phone does not replace the guest email", func(t *testing.T) {
		sender := validParty()
		sender.Email = ""
		sender.Phone = "+44 20 7946 0000"
		req := GuestShipmentRequest{Sender: sender, ShipmentDetails: ShipmentDetails{Receiver: validParty()}}
		assert.Equal(t, []string{"sender.email"}, fields(dErrors.ViolationsOf(req.Validate())))
	})

	t.Run("malformed email", func(t *testing.T) {
		sender := validParty()
		sender.Email = "not-an-email"
		req := GuestShipmentRequest{Sender: sender, ShipmentDetails: ShipmentDetails{Receiver: validParty()}}
		v := dErrors.ViolationsOf(req.Validate())
		require.Len(t, v, 1)
		assert.Equal(t, "must be a valid email address", v[0].Message)
	})

	t.Run("complete request passes", func(t *testing.T) {
		req := GuestShipmentRequest{Sender: validParty(), ShipmentDetails: ShipmentDetails{Receiver: validParty()}}
		assert.NoError(t, req.Validate())
	})
}

func TestAuthenticatedRequestValidation(t *testing.T) {
	t.Run("every receiver and weight violation at once", func(t *testing.T) {
		w := decimal.NewFromInt(-1)
		req := AuthenticatedShipmentRequest{ShipmentDetails: ShipmentDetails{Weight: &w}}
		got := fields(dErrors.ViolationsOf(req.Validate()))
		assert.ElementsMatch(t, []string{
			"receiver.name", "receiver.address", "receiver.city", "receiver.postal_code",
			"receiver.country", "receiver.contact", "weight",
		}, got)
	})

	t.Run("phone is enough contact for a receiver", func(t *testing.T) {
		receiver := validParty()
		receiver.Email = ""
		receiver.Phone = "555-0100"
		req := AuthenticatedShipmentRequest{ShipmentDetails: ShipmentDetails{Receiver: receiver}}
		assert.NoError(t, req.Validate())
	})
}

func TestPartyNormalize(t *testing.T) {
	p := Party{Name: "  Ada ", Email: " ADA@Example.COM "}
	p.Normalize()
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
}

func TestFilterMatches(t *testing.T) {
	delivered := StatusDelivered
	s := &Shipment{Status: StatusCreated}
	assert.True(t, Filter{}.Matches(s))
	assert.False(t, Filter{Status: &delivered}.Matches(s))
}
