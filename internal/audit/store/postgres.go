package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boxinator/internal/audit"
	"boxinator/internal/storage"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/tx"
)

// PostgresStore persists audit rows. Writes use the transaction carried in ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AppendStatusChange(ctx context.Context, entry audit.StatusChange) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO shipment_status_history (id, shipment_id, status, actor_id, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.ShipmentID), entry.Status, nullableUser(entry.ActorID), entry.Note, entry.At,
	)
	return storage.MapError("insert status history", err)
}

func (s *PostgresStore) AppendAdminAction(ctx context.Context, entry audit.AdminAction) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO admin_actions (id, actor_id, action, target_type, target_id, before_state, after_state, client_ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.ActorID), string(entry.Action), entry.TargetType, entry.TargetID,
		nullableJSON(entry.Before), nullableJSON(entry.After), entry.ClientIP, entry.UserAgent, entry.At,
	)
	return storage.MapError("insert admin action", err)
}

func (s *PostgresStore) ListStatusChanges(ctx context.Context, shipmentID id.ShipmentID) ([]audit.StatusChange, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, shipment_id, status, actor_id, note, changed_at
		FROM shipment_status_history
		WHERE shipment_id = $1
		ORDER BY seq ASC`, uuid.UUID(shipmentID))
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var out []audit.StatusChange
	for rows.Next() {
		var (
			entryID, shipID uuid.UUID
			actor           uuid.NullUUID
			entry           audit.StatusChange
		)
		if err := rows.Scan(&entryID, &shipID, &entry.Status, &actor, &entry.Note, &entry.At); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.ShipmentID = id.ShipmentID(shipID)
		if actor.Valid {
			u := id.UserID(actor.UUID)
			entry.ActorID = &u
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAdminActions(ctx context.Context, filter audit.AdminLogFilter) (id.Page[audit.AdminAction], error) {
	where, args := adminLogWhere(filter)
	page := id.Page[audit.AdminAction]{Limit: filter.Limit, Offset: filter.Offset}

	db := tx.Execer(ctx, s.db)
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_actions`+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count admin actions: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, actor_id, action, target_type, target_id, before_state, after_state, client_ip, user_agent, created_at
		FROM admin_actions%s
		ORDER BY created_at DESC, seq DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, fmt.Errorf("query admin actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID, actorID uuid.UUID
			action           string
			before, after    []byte
			entry            audit.AdminAction
		)
		if err := rows.Scan(&entryID, &actorID, &action, &entry.TargetType, &entry.TargetID,
			&before, &after, &entry.ClientIP, &entry.UserAgent, &entry.At); err != nil {
			return page, fmt.Errorf("scan admin action: %w", err)
		}
		entry.ID = id.EntryID(entryID)
		entry.ActorID = id.UserID(actorID)
		entry.Action = audit.Action(action)
		entry.Before = before
		entry.After = after
		page.Items = append(page.Items, entry)
	}
	return page, rows.Err()
}

func adminLogWhere(f audit.AdminLogFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.ActorID != nil {
		add("actor_id = $%d", uuid.UUID(*f.ActorID))
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if f.TargetType != "" {
		add("target_type = $%d", f.TargetType)
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

func nullableUser(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
