package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"boxinator/internal/shipment/models"
	"boxinator/internal/storage"
	id "boxinator/pkg/domain"
	"boxinator/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SenderProfile(ctx context.Context, userID id.UserID) (*models.Party, error) {
	var p models.Party
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT name, address, city, postal_code, country, email, phone
		FROM user_profiles WHERE user_id = $1`, uuid.UUID(userID),
	).Scan(&p.Name, &p.Address, &p.City, &p.PostalCode, &p.Country, &p.Email, &p.Phone)
	if err != nil {
		return nil, storage.MapError("find profile", err)
	}
	return &p, nil
}

func (s *PostgresStore) Save(ctx context.Context, userID id.UserID, p models.Party) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, name, address, city, postal_code, country, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone`,
		uuid.UUID(userID), p.Name, p.Address, p.City, p.PostalCode, p.Country, p.Email, p.Phone,
	)
	if err != nil {
		return storage.MapError("save profile", err)
	}
	return nil
}
