package service

import (
	"context"
	"errors"

	"boxinator/internal/pricing/metrics"
	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
)

// CatalogReader is the read side of the catalog the calculator prices from.
type CatalogReader interface {
	FindBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error)
	FindCountry(ctx context.Context, countryID id.CountryID) (*models.Country, error)
}

// Calculator prices a (box type, country) pair. It never writes.
type Calculator struct {
	catalog CatalogReader
	metrics *metrics.Metrics
}

func NewCalculator(catalog CatalogReader, m *metrics.Metrics) *Calculator {
	return &Calculator{catalog: catalog, metrics: m}
}

// Calculate returns the cost breakdown. Missing or inactive references yield
// an invalid_reference error naming every bad field.
func (c *Calculator) Calculate(ctx context.Context, boxTypeID id.BoxTypeID, countryID id.CountryID) (*models.CostBreakdown, error) {
	var violations []dErrors.FieldViolation

	boxType, problem, err := c.loadBoxType(ctx, boxTypeID)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		violations = append(violations, dErrors.FieldViolation{Field: "box_type_id", Message: problem})
	}
	country, problem, err := c.loadCountry(ctx, countryID)
	if err != nil {
		return nil, err
	}
	if problem != "" {
		violations = append(violations, dErrors.FieldViolation{Field: "country_id", Message: problem})
	}
	if len(violations) > 0 {
		return nil, dErrors.WithViolations(dErrors.CodeInvalidReference, violations)
	}

	c.metrics.IncrementCostsComputed()
	return &models.CostBreakdown{
		BoxTypeID:         boxType.ID,
		BoxTypeName:       boxType.Name,
		CountryID:         country.ID,
		CountryName:       country.Name,
		BaseCost:          boxType.BaseCost,
		Multiplier:        country.Multiplier,
		FinalCost:         models.FinalCost(boxType.BaseCost, country.Multiplier),
		Currency:          models.Currency,
		EstimatedDelivery: models.DeliveryEstimate(country),
	}, nil
}

// loadBoxType returns a non-empty problem when the reference is unusable.
func (c *Calculator) loadBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, string, error) {
	if boxTypeID.IsNil() {
		return nil, "is required", nil
	}
	b, err := c.catalog.FindBoxType(ctx, boxTypeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, "does not exist", nil
	}
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load box type")
	}
	if !b.Active {
		return nil, "is not active", nil
	}
	return b, "", nil
}

func (c *Calculator) loadCountry(ctx context.Context, countryID id.CountryID) (*models.Country, string, error) {
	if countryID.IsNil() {
		return nil, "is required", nil
	}
	country, err := c.catalog.FindCountry(ctx, countryID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, "does not exist", nil
	}
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load country")
	}
	if !country.Active {
		return nil, "is not active", nil
	}
	return country, "", nil
}
