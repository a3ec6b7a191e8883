package staff

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opsdesk/internal/domain/location"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const profileColumns = `id::text, coalesce(user_id::text, ''), name, coalesce(email, ''), coalesce(phone, ''), coalesce(designation, ''), active,
    work_location, custom_location, custom_location2, require_checkout_location, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	p, err := scanProfile(s.DB.QueryRow(ctx, `SELECT `+profileColumns+` FROM staff WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrStaffNotFound
	}
	return p, err
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	p, err := scanProfile(s.DB.QueryRow(ctx, `SELECT `+profileColumns+` FROM staff WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrStaffNotFound
	}
	return p, err
}

func (s *Store) List(ctx context.Context, activeOnly bool) ([]Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM staff`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, p Profile) error {
	primary, err := siteJSON(p.Primary)
	if err != nil {
		return err
	}
	secondary, err := siteJSON(p.Secondary)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO staff (id, user_id, name, email, phone, designation, active, work_location, custom_location, custom_location2, require_checkout_location, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    ON CONFLICT (id) DO UPDATE
    SET user_id = EXCLUDED.user_id, name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
        designation = EXCLUDED.designation, active = EXCLUDED.active, work_location = EXCLUDED.work_location,
        custom_location = EXCLUDED.custom_location, custom_location2 = EXCLUDED.custom_location2,
        require_checkout_location = EXCLUDED.require_checkout_location, updated_at = EXCLUDED.updated_at
  `, p.ID, nullIfEmpty(p.UserID), p.Name, p.Email, p.Phone, p.Designation, p.Active, string(p.Kind), primary, secondary, p.RequireCheckoutLocation, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var kind string
	var primary, secondary []byte
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.Designation, &p.Active,
		&kind, &primary, &secondary, &p.RequireCheckoutLocation, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	p.Kind = location.Kind(kind)
	var err error
	if p.Primary, err = parseSite(primary); err != nil {
		return Profile{}, err
	}
	if p.Secondary, err = parseSite(secondary); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func siteJSON(site *location.Site) (any, error) {
	if site == nil {
		return nil, nil
	}
	return json.Marshal(site)
}

func parseSite(raw []byte) (*location.Site, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var site location.Site
	if err := json.Unmarshal(raw, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
