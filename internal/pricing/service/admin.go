package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"boxinator/internal/audit"
	"boxinator/internal/pricing/models"
	id "boxinator/pkg/domain"
	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/requestcontext"
)

type multiplierState struct {
	Multiplier string `json:"multiplier"`
}

type baseCostState struct {
	BaseCost string `json:"base_cost"`
}

type countryState struct {
	Name     string `json:"name"`
	IsSource bool   `json:"is_source"`
	Active   bool   `json:"active"`
}

type activeState struct {
	Active bool `json:"active"`
}

// UpdateCountryMultiplier replaces a country's multiplier. The prior value is
// logged as a MultiplierChange before the new one is applied, and an admin
// action row is written; all three writes share one transaction.
func (c *Catalog) UpdateCountryMultiplier(ctx context.Context, actor id.Actor, countryID id.CountryID, multiplier decimal.Decimal, reason string) (*models.Country, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if problem := models.MultiplierProblem(multiplier); problem != "" {
		return nil, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "multiplier", Message: problem},
		})
	}
	now := requestcontext.Now(ctx)
	reason = strings.TrimSpace(reason)

	var updated *models.Country
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		country, err := c.store.FindCountryForUpdate(ctx, countryID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "country not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load country")
		}
		if country.Multiplier.Equal(multiplier) {
			return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
				{Field: "multiplier", Message: "is unchanged"},
			})
		}

		change := models.MultiplierChange{
			ID:        id.NewEntryID(),
			CountryID: countryID,
			Previous:  country.Multiplier,
			New:       multiplier,
			ActorID:   actor.ID,
			Reason:    reason,
			ChangedAt: now,
		}
		if err := c.store.AppendMultiplierChange(ctx, change); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to log multiplier change")
		}
		if err := c.store.UpdateCountryMultiplier(ctx, countryID, multiplier, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update multiplier")
		}

		before, err := audit.Snapshot(multiplierState{Multiplier: country.Multiplier.String()})
		if err != nil {
			return err
		}
		after, err := audit.Snapshot(multiplierState{Multiplier: multiplier.String()})
		if err != nil {
			return err
		}
		if err := c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionUpdateCountryMultiplier,
			TargetType: audit.TargetCountry,
			TargetID:   countryID.String(),
			Before:     before,
			After:      after,
			At:         now,
		}); err != nil {
			return err
		}

		country.Multiplier = multiplier
		country.UpdatedAt = now
		updated = country
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateCountry(ctx, countryID)
	}
	c.recordPricingChange(audit.ActionUpdateCountryMultiplier)
	c.logger.InfoContext(ctx, "country multiplier updated",
		"country_id", countryID.String(),
		"multiplier", updated.Multiplier.String(),
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// MultiplierHistory lists a country's multiplier changes oldest first.
func (c *Catalog) MultiplierHistory(ctx context.Context, actor id.Actor, countryID id.CountryID) ([]models.MultiplierChange, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := c.GetCountry(ctx, countryID); err != nil {
		return nil, err
	}
	changes, err := c.store.ListMultiplierChanges(ctx, countryID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load multiplier history")
	}
	return changes, nil
}

// CreateCountry adds a destination. Codes are unique.
func (c *Catalog) CreateCountry(ctx context.Context, actor id.Actor, req models.CreateCountryRequest) (*models.Country, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	country := &models.Country{
		ID:         id.NewCountryID(),
		Name:       req.Name,
		Code:       req.Code,
		Multiplier: req.Multiplier,
		Active:     !req.Inactive,
		IsSource:   req.IsSource,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := c.store.CreateCountry(ctx, country); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "country code must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create country")
		}
		after, err := audit.Snapshot(country)
		if err != nil {
			return err
		}
		return c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionCreateCountry,
			TargetType: audit.TargetCountry,
			TargetID:   country.ID.String(),
			After:      after,
			At:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateCountry(ctx, country.ID)
	}
	c.recordPricingChange(audit.ActionCreateCountry)
	return country, nil
}

// CreateBoxType adds a box size. Names are unique.
func (c *Catalog) CreateBoxType(ctx context.Context, actor id.Actor, req models.CreateBoxTypeRequest) (*models.BoxType, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	boxType := &models.BoxType{
		ID:        id.NewBoxTypeID(),
		Name:      req.Name,
		Size:      req.Size,
		BaseCost:  req.BaseCost,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := c.store.CreateBoxType(ctx, boxType); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "box type name must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create box type")
		}
		after, err := audit.Snapshot(boxType)
		if err != nil {
			return err
		}
		return c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionCreateBoxType,
			TargetType: audit.TargetBoxType,
			TargetID:   boxType.ID.String(),
			After:      after,
			At:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateBoxType(ctx, boxType.ID)
	}
	c.recordPricingChange(audit.ActionCreateBoxType)
	return boxType, nil
}

// CorrectBoxTypePrice changes a box type's base cost. Shipments keep the cost
// recorded when they were created.
func (c *Catalog) CorrectBoxTypePrice(ctx context.Context, actor id.Actor, boxTypeID id.BoxTypeID, baseCost decimal.Decimal) (*models.BoxType, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if problem := models.BaseCostProblem(baseCost); problem != "" {
		return nil, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "base_cost", Message: problem},
		})
	}
	now := requestcontext.Now(ctx)

	var updated *models.BoxType
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		boxType, err := c.store.FindBoxTypeForUpdate(ctx, boxTypeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "box type not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load box type")
		}
		if boxType.BaseCost.Equal(baseCost) {
			return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
				{Field: "base_cost", Message: "is unchanged"},
			})
		}
		if err := c.store.UpdateBoxTypeBaseCost(ctx, boxTypeID, baseCost, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update base cost")
		}

		before, err := audit.Snapshot(baseCostState{BaseCost: boxType.BaseCost.StringFixed(2)})
		if err != nil {
			return err
		}
		after, err := audit.Snapshot(baseCostState{BaseCost: baseCost.StringFixed(2)})
		if err != nil {
			return err
		}
		if err := c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionUpdateBoxTypePrice,
			TargetType: audit.TargetBoxType,
			TargetID:   boxTypeID.String(),
			Before:     before,
			After:      after,
			At:         now,
		}); err != nil {
			return err
		}

		boxType.BaseCost = baseCost
		boxType.UpdatedAt = now
		updated = boxType
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateBoxType(ctx, boxTypeID)
	}
	c.recordPricingChange(audit.ActionUpdateBoxTypePrice)
	return updated, nil
}

// UpdateCountry edits a country's name, source flag or availability. An
// inactive country stays visible to existing shipments but can no longer be
// priced.
func (c *Catalog) UpdateCountry(ctx context.Context, actor id.Actor, countryID id.CountryID, req models.UpdateCountryRequest) (*models.Country, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.Country
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		country, err := c.store.FindCountryForUpdate(ctx, countryID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "country not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load country")
		}
		next := req.Apply(*country)
		prior := countryState{Name: country.Name, IsSource: country.IsSource, Active: country.Active}
		after := countryState{Name: next.Name, IsSource: next.IsSource, Active: next.Active}
		if prior == after {
			return dErrors.New(dErrors.CodeValidation, "country is unchanged")
		}
		next.UpdatedAt = now
		if err := c.store.UpdateCountryDetails(ctx, &next); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update country")
		}

		beforeJSON, err := audit.Snapshot(prior)
		if err != nil {
			return err
		}
		afterJSON, err := audit.Snapshot(after)
		if err != nil {
			return err
		}
		if err := c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionUpdateCountry,
			TargetType: audit.TargetCountry,
			TargetID:   countryID.String(),
			Before:     beforeJSON,
			After:      afterJSON,
			At:         now,
		}); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateCountry(ctx, countryID)
	}
	c.recordPricingChange(audit.ActionUpdateCountry)
	c.logger.InfoContext(ctx, "country updated",
		"country_id", countryID.String(),
		"active", updated.Active,
		"actor_id", actor.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// SetBoxTypeActive withdraws a box type from sale or restores it.
func (c *Catalog) SetBoxTypeActive(ctx context.Context, actor id.Actor, boxTypeID id.BoxTypeID, active bool) (*models.BoxType, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var updated *models.BoxType
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		boxType, err := c.store.FindBoxTypeForUpdate(ctx, boxTypeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "box type not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load box type")
		}
		if boxType.Active == active {
			return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
				{Field: "active", Message: "is unchanged"},
			})
		}
		if err := c.store.UpdateBoxTypeActive(ctx, boxTypeID, active, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update box type status")
		}

		before, err := audit.Snapshot(activeState{Active: boxType.Active})
		if err != nil {
			return err
		}
		after, err := audit.Snapshot(activeState{Active: active})
		if err != nil {
			return err
		}
		if err := c.recorder.AppendAdminAction(ctx, audit.AdminAction{
			ActorID:    actor.ID,
			Action:     audit.ActionUpdateBoxTypeStatus,
			TargetType: audit.TargetBoxType,
			TargetID:   boxTypeID.String(),
			Before:     before,
			After:      after,
			At:         now,
		}); err != nil {
			return err
		}

		boxType.Active = active
		boxType.UpdatedAt = now
		updated = boxType
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.InvalidateBoxType(ctx, boxTypeID)
	}
	c.recordPricingChange(audit.ActionUpdateBoxTypeStatus)
	return updated, nil
}
