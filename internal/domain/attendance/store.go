package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const recordColumns = `id::text, staff_id::text, staff_name, to_char(day, 'YYYY-MM-DD'), check_in_at, check_out_at,
    status, is_manual, coalesce(note, ''), loc_lat, loc_lng, loc_address, created_at`

func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+recordColumns+` FROM attendance WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

func (s *Store) ListForDay(ctx context.Context, day string) ([]Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM attendance WHERE day = $1::date ORDER BY staff_name`, day)
}

func (s *Store) ListForStaff(ctx context.Context, staffID, from, to string) ([]Record, error) {
	return s.list(ctx, `
    SELECT `+recordColumns+`
    FROM attendance
    WHERE staff_id = $1 AND day BETWEEN $2::date AND $3::date
    ORDER BY day
  `, staffID, from, to)
}

func (s *Store) ListRange(ctx context.Context, from, to string) ([]Record, error) {
	return s.list(ctx, `
    SELECT `+recordColumns+`
    FROM attendance
    WHERE day BETWEEN $1::date AND $2::date
    ORDER BY day, staff_name
  `, from, to)
}

func (s *Store) Create(ctx context.Context, rec Record) error {
	lat, lng, address := locationColumns(rec.Location)
	_, err := s.DB.Exec(ctx, `
    INSERT INTO attendance (id, staff_id, staff_name, day, check_in_at, check_out_at, status, is_manual, note, loc_lat, loc_lng, loc_address, created_at)
    VALUES ($1,$2,$3,$4::date,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, rec.ID, rec.StaffID, rec.StaffName, rec.Date, rec.CheckInTime, rec.CheckOutTime, rec.Status, rec.IsManualByAdmin, rec.Note, lat, lng, address, rec.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyCheckedIn
	}
	return err
}

func (s *Store) CheckOut(ctx context.Context, rec Record) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE attendance
    SET check_out_at = $2, status = $3, note = $4
    WHERE id = $1 AND check_out_at IS NULL
  `, rec.ID, rec.CheckOutTime, rec.Status, rec.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attendance WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrAlreadyCheckedOut
	}
	return ErrRecordNotFound
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var checkIn, checkOut *time.Time
	var lat, lng *float64
	var address *string
	if err := row.Scan(&rec.ID, &rec.StaffID, &rec.StaffName, &rec.Date, &checkIn, &checkOut,
		&rec.Status, &rec.IsManualByAdmin, &rec.Note, &lat, &lng, &address, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.CheckInTime = checkIn
	rec.CheckOutTime = checkOut
	if lat != nil && lng != nil {
		rec.Location = &LocationSnapshot{Lat: *lat, Lng: *lng}
		if address != nil {
			rec.Location.Address = *address
		}
	}
	return rec, nil
}

func locationColumns(loc *LocationSnapshot) (any, any, any) {
	if loc == nil {
		return nil, nil, nil
	}
	return loc.Lat, loc.Lng, loc.Address
}
