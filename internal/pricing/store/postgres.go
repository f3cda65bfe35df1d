package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"boxinator/internal/pricing/models"
	"boxinator/internal/storage"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

// PostgresStore persists the pricing catalog.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const boxTypeColumns = `id, name, size, base_cost, active, created_at, updated_at`
const countryColumns = `id, name, code, multiplier, active, is_source, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoxType(row rowScanner) (*models.BoxType, error) {
	var (
		rawID uuid.UUID
		b     models.BoxType
	)
	if err := row.Scan(&rawID, &b.Name, &b.Size, &b.BaseCost, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BoxTypeID(rawID)
	return &b, nil
}

func scanCountry(row rowScanner) (*models.Country, error) {
	var (
		rawID uuid.UUID
		c     models.Country
	)
	if err := row.Scan(&rawID, &c.Name, &c.Code, &c.Multiplier, &c.Active, &c.IsSource, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CountryID(rawID)
	return &c, nil
}

func (s *PostgresStore) findBoxType(ctx context.Context, boxTypeID id.BoxTypeID, suffix string) (*models.BoxType, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+boxTypeColumns+` FROM box_types WHERE id = $1`+suffix, uuid.UUID(boxTypeID))
	b, err := scanBoxType(row)
	if err != nil {
		return nil, storage.MapError("find box type", err)
	}
	return b, nil
}

func (s *PostgresStore) FindBoxType(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	return s.findBoxType(ctx, boxTypeID, "")
}

// FindBoxTypeForUpdate row-locks the box type until the transaction ends.
func (s *PostgresStore) FindBoxTypeForUpdate(ctx context.Context, boxTypeID id.BoxTypeID) (*models.BoxType, error) {
	return s.findBoxType(ctx, boxTypeID, " FOR UPDATE")
}

func (s *PostgresStore) findCountry(ctx context.Context, countryID id.CountryID, suffix string) (*models.Country, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+countryColumns+` FROM countries WHERE id = $1`+suffix, uuid.UUID(countryID))
	c, err := scanCountry(row)
	if err != nil {
		return nil, storage.MapError("find country", err)
	}
	return c, nil
}

func (s *PostgresStore) FindCountry(ctx context.Context, countryID id.CountryID) (*models.Country, error) {
	return s.findCountry(ctx, countryID, "")
}

// FindCountryForUpdate row-locks the country until the transaction ends.
func (s *PostgresStore) FindCountryForUpdate(ctx context.Context, countryID id.CountryID) (*models.Country, error) {
	return s.findCountry(ctx, countryID, " FOR UPDATE")
}

func (s *PostgresStore) ListActiveBoxTypes(ctx context.Context) ([]*models.BoxType, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+boxTypeColumns+` FROM box_types WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list box types: %w", err)
	}
	defer rows.Close()
	var out []*models.BoxType
	for rows.Next() {
		b, err := scanBoxType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan box type: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListActiveCountries(ctx context.Context) ([]*models.Country, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+countryColumns+` FROM countries WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()
	var out []*models.Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateBoxType(ctx context.Context, b *models.BoxType) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO box_types (`+boxTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(b.ID), b.Name, b.Size, b.BaseCost, b.Active, b.CreatedAt, b.UpdatedAt)
	return storage.MapError("insert box type", err)
}

func (s *PostgresStore) CreateCountry(ctx context.Context, c *models.Country) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO countries (`+countryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(c.ID), c.Name, c.Code, c.Multiplier, c.Active, c.IsSource, c.CreatedAt, c.UpdatedAt)
	return storage.MapError("insert country", err)
}

func (s *PostgresStore) UpdateCountryMultiplier(ctx context.Context, countryID id.CountryID, multiplier decimal.Decimal, at time.Time) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE countries SET multiplier = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(countryID), multiplier, at)
	if err != nil {
		return storage.MapError("update country multiplier", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) UpdateBoxTypeBaseCost(ctx context.Context, boxTypeID id.BoxTypeID, baseCost decimal.Decimal, at time.Time) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE box_types SET base_cost = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(boxTypeID), baseCost, at)
	if err != nil {
		return storage.MapError("update box type base cost", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) UpdateCountryDetails(ctx context.Context, c *models.Country) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE countries SET name = $2, is_source = $3, active = $4, updated_at = $5 WHERE id = $1`,
		uuid.UUID(c.ID), c.Name, c.IsSource, c.Active, c.UpdatedAt)
	if err != nil {
		return storage.MapError("update country", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) UpdateBoxTypeActive(ctx context.Context, boxTypeID id.BoxTypeID, active bool, at time.Time) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE box_types SET active = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(boxTypeID), active, at)
	if err != nil {
		return storage.MapError("update box type status", err)
	}
	return requireOneRow(res)
}

func (s *PostgresStore) AppendMultiplierChange(ctx context.Context, change models.MultiplierChange) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO country_multiplier_log (id, country_id, previous, new_value, actor_id, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(change.ID), uuid.UUID(change.CountryID), change.Previous, change.New,
		uuid.UUID(change.ActorID), change.Reason, change.ChangedAt)
	return storage.MapError("insert multiplier change", err)
}

func (s *PostgresStore) ListMultiplierChanges(ctx context.Context, countryID id.CountryID) ([]models.MultiplierChange, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, country_id, previous, new_value, actor_id, reason, changed_at
		FROM country_multiplier_log
		WHERE country_id = $1
		ORDER BY seq ASC`, uuid.UUID(countryID))
	if err != nil {
		return nil, fmt.Errorf("list multiplier changes: %w", err)
	}
	defer rows.Close()
	var out []models.MultiplierChange
	for rows.Next() {
		var (
			entryID, cID, actorID uuid.UUID
			c                     models.MultiplierChange
		)
		if err := rows.Scan(&entryID, &cID, &c.Previous, &c.New, &actorID, &c.Reason, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan multiplier change: %w", err)
		}
		c.ID = id.EntryID(entryID)
		c.CountryID = id.CountryID(cID)
		c.ActorID = id.UserID(actorID)
		out = append(out, c)
	}
	return out, rows.Err()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
