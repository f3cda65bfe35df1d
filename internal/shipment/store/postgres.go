package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"boxinator/internal/shipment/models"
	"boxinator/internal/storage"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/sentinel"
	"boxinator/pkg/platform/tx"
)

// PostgresStore persists shipments and cost audits. Writes use the
// transaction carried in ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const shipmentColumns = `id, user_id, guest_email,
	sender_name, sender_address, sender_city, sender_postal_code, sender_country, sender_email, sender_phone,
	receiver_name, receiver_address, receiver_city, receiver_postal_code, receiver_country, receiver_email, receiver_phone,
	box_type_id, country_id, base_cost, multiplier, final_cost, currency, weight,
	tracking_id, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var (
		rawID, boxTypeID, countryID uuid.UUID
		userID                      uuid.NullUUID
		guestEmail                  sql.NullString
		weight                      decimal.NullDecimal
		status                      string
		sh                          models.Shipment
	)
	err := row.Scan(&rawID, &userID, &guestEmail,
		&sh.Sender.Name, &sh.Sender.Address, &sh.Sender.City, &sh.Sender.PostalCode, &sh.Sender.Country, &sh.Sender.Email, &sh.Sender.Phone,
		&sh.Receiver.Name, &sh.Receiver.Address, &sh.Receiver.City, &sh.Receiver.PostalCode, &sh.Receiver.Country, &sh.Receiver.Email, &sh.Receiver.Phone,
		&boxTypeID, &countryID, &sh.Cost.BaseCost, &sh.Cost.Multiplier, &sh.Cost.FinalCost, &sh.Cost.Currency, &weight,
		&sh.TrackingID, &status, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sh.ID = id.ShipmentID(rawID)
	if userID.Valid {
		u := id.UserID(userID.UUID)
		sh.UserID = &u
	}
	sh.GuestEmail = guestEmail.String
	if weight.Valid {
		sh.Weight = &weight.Decimal
	}
	sh.BoxTypeID = id.BoxTypeID(boxTypeID)
	sh.CountryID = id.CountryID(countryID)
	sh.Status = models.Status(status)
	return &sh, nil
}

// Create inserts sh. A duplicate tracking id is sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, sh *models.Shipment) error {
	var userID any
	if sh.UserID != nil {
		userID = uuid.UUID(*sh.UserID)
	}
	var guestEmail any
	if sh.GuestEmail != "" {
		guestEmail = sh.GuestEmail
	}
	var weight any
	if sh.Weight != nil {
		weight = *sh.Weight
	}
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO shipments (`+shipmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		uuid.UUID(sh.ID), userID, guestEmail,
		sh.Sender.Name, sh.Sender.Address, sh.Sender.City, sh.Sender.PostalCode, sh.Sender.Country, sh.Sender.Email, sh.Sender.Phone,
		sh.Receiver.Name, sh.Receiver.Address, sh.Receiver.City, sh.Receiver.PostalCode, sh.Receiver.Country, sh.Receiver.Email, sh.Receiver.Phone,
		uuid.UUID(sh.BoxTypeID), uuid.UUID(sh.CountryID), sh.Cost.BaseCost, sh.Cost.Multiplier, sh.Cost.FinalCost, sh.Cost.Currency, weight,
		sh.TrackingID, string(sh.Status), sh.CreatedAt, sh.UpdatedAt)
	return storage.MapError("insert shipment", err)
}

func (s *PostgresStore) find(ctx context.Context, where string, arg any) (*models.Shipment, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE `+where, arg)
	sh, err := scanShipment(row)
	if err != nil {
		return nil, storage.MapError("find shipment", err)
	}
	return sh, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	return s.find(ctx, `id = $1`, uuid.UUID(shipmentID))
}

// FindByIDForUpdate row-locks the shipment until the transaction ends.
func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	return s.find(ctx, `id = $1 FOR UPDATE`, uuid.UUID(shipmentID))
}

func (s *PostgresStore) FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	return s.find(ctx, `tracking_id = $1`, trackingID)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, shipmentID id.ShipmentID, status models.Status, at time.Time) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE shipments SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(shipmentID), string(status), at)
	if err != nil {
		return storage.MapError("update shipment status", err)
	}
	return requireOneRow(res)
}

// Delete removes the shipment and its cost audits. Status history is kept.
func (s *PostgresStore) Delete(ctx context.Context, shipmentID id.ShipmentID) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, `DELETE FROM shipments WHERE id = $1`, uuid.UUID(shipmentID))
	if err != nil {
		return storage.MapError("delete shipment", err)
	}
	return requireOneRow(res)
}

// List returns matching shipments newest first.
func (s *PostgresStore) List(ctx context.Context, filter models.Filter) (id.Page[*models.Shipment], error) {
	p := filter.Pagination.Normalize()
	where, args := shipmentWhere(filter)
	page := id.Page[*models.Shipment]{Limit: p.Limit, Offset: p.Offset}

	db := tx.Execer(ctx, s.db)
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments`+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count shipments: %w", err)
	}

	args = append(args, p.Limit, p.Offset)
	query := fmt.Sprintf(`SELECT %s FROM shipments%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, shipmentColumns, where, len(args)-1, len(args))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query shipments: %w", err)
	}
	defer rows.Close()
	page.Items = []*models.Shipment{}
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return page, fmt.Errorf("scan shipment: %w", err)
		}
		page.Items = append(page.Items, sh)
	}
	return page, rows.Err()
}

func shipmentWhere(f models.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.CountryID != nil {
		add("country_id = $%d", uuid.UUID(*f.CountryID))
	}
	if f.UserID != nil {
		add("user_id = $%d", uuid.UUID(*f.UserID))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Stats groups shipments created within [from, to] by status.
func (s *PostgresStore) Stats(ctx context.Context, from, to *time.Time) ([]models.StatusStats, error) {
	where, args := shipmentWhere(models.Filter{From: from, To: to})
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(final_cost), 0)
		FROM shipments`+where+`
		GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("query shipment stats: %w", err)
	}
	defer rows.Close()

	byStatus := make(map[models.Status]models.StatusStats)
	for rows.Next() {
		var (
			status string
			st     models.StatusStats
		)
		if err := rows.Scan(&status, &st.Count, &st.Revenue); err != nil {
			return nil, fmt.Errorf("scan shipment stats: %w", err)
		}
		st.Status = models.Status(status)
		byStatus[st.Status] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []models.StatusStats
	for _, status := range models.AllStatuses {
		if st, ok := byStatus[status]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *PostgresStore) AppendCostAudit(ctx context.Context, a models.CostAudit) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO cost_audits (id, shipment_id, box_type_id, country_id, base_cost, multiplier, final_cost, currency, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(a.ID), uuid.UUID(a.ShipmentID), uuid.UUID(a.BoxTypeID), uuid.UUID(a.CountryID),
		a.BaseCost, a.Multiplier, a.FinalCost, a.Currency, a.ComputedAt)
	return storage.MapError("insert cost audit", err)
}

func (s *PostgresStore) ListCostAudits(ctx context.Context, shipmentID id.ShipmentID) ([]models.CostAudit, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, shipment_id, box_type_id, country_id, base_cost, multiplier, final_cost, currency, computed_at
		FROM cost_audits WHERE shipment_id = $1 ORDER BY computed_at`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("query cost audits: %w", err)
	}
	defer rows.Close()
	var out []models.CostAudit
	for rows.Next() {
		var (
			entryID, shipID, boxTypeID, countryID uuid.UUID
			a                                     models.CostAudit
		)
		if err := rows.Scan(&entryID, &shipID, &boxTypeID, &countryID, &a.BaseCost, &a.Multiplier, &a.FinalCost, &a.Currency, &a.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan cost audit: %w", err)
		}
		a.ID = id.EntryID(entryID)
		a.ShipmentID = id.ShipmentID(shipID)
		a.BoxTypeID = id.BoxTypeID(boxTypeID)
		a.CountryID = id.CountryID(countryID)
		out = append(out, a)
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
