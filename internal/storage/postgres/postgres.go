package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"eventReserver/internal/config"
	"eventReserver/internal/models"
	"eventReserver/internal/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	eventColumns       = `id, title, capacity, is_active, start_date, end_date, created_at, updated_at`
	reservationColumns = `id, event_id, user_id, state, expires_at, created_at, updated_at`
)

const (
	queryLockEvent = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
		FOR UPDATE`

	queryLockReservation = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1
		FOR UPDATE`

	queryCountActive = `
		SELECT COUNT(*)
		FROM reservations
		WHERE event_id = $1 AND state IN ('HOLD', 'CONFIRMED')`

	queryInsertHold = `
		INSERT INTO reservations (id, event_id, user_id, state, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	queryConfirmHold = `
		UPDATE reservations
		SET state = 'CONFIRMED', expires_at = NULL, updated_at = $2
		WHERE id = $1
		RETURNING ` + reservationColumns

	queryGetEvent = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1`

	queryListEvents = `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY start_date ASC NULLS LAST, created_at ASC`

	queryCreateEvent = `
		INSERT INTO events (id, title, capacity, is_active, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	queryGetReservation = `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1`

	queryDeleteHold = `
		DELETE FROM reservations
		WHERE id = $1 AND user_id = $2 AND state = 'HOLD'`

	queryCountByState = `
		SELECT
			COALESCE(SUM(CASE WHEN state = 'HOLD' THEN 1 ELSE 0 END), 0) AS hold_count,
			COALESCE(SUM(CASE WHEN state = 'CONFIRMED' THEN 1 ELSE 0 END), 0) AS confirmed_count
		FROM reservations
		WHERE event_id = $1`

	queryPurgeExpiredHolds = `
		DELETE FROM reservations
		WHERE state = 'HOLD' AND expires_at <= $1
		RETURNING ` + reservationColumns
)

type Storage struct {
	DB          *sqlx.DB
	lockTimeout time.Duration
}

// New wraps an already opened connection. lockTimeout <= 0 leaves the
// server default in place.
func New(db *sql.DB, lockTimeout time.Duration) *Storage {
	return &Storage{
		DB:          sqlx.NewDb(db, "postgres"),
		lockTimeout: lockTimeout,
	}
}

// InitDB opens the pool and pings until the database answers or
// dbCfg.ConnectTimeout elapses.
func InitDB(ctx context.Context, dbCfg *config.Database) (*Storage, error) {
	const op = "storage.postgres.InitDB"

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.User,
		dbCfg.Password,
		dbCfg.DBName,
		dbCfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	if dbCfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dbCfg.MaxOpenConns)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = dbCfg.ConnectTimeout

	ping := func() error {
		return db.PingContext(ctx)
	}

	if err = backoff.Retry(ping, backoff.WithContext(b, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect to the database: %w", op, err)
	}

	return &Storage{DB: db, lockTimeout: dbCfg.LockTimeout}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}

func (s *Storage) InTx(ctx context.Context, fn storage.TxFunc) error {
	const op = "storage.postgres.InTx"

	sqlTx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer sqlTx.Rollback()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: failed to set lock timeout: %w", op, err)
		}
	}

	if err = fn(&tx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}

	return nil
}

type tx struct {
	tx *sqlx.Tx
}

func (t *tx) LockEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event

	err := t.tx.GetContext(ctx, &event, queryLockEvent, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	return &event, nil
}

func (t *tx) LockReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation

	err := t.tx.GetContext(ctx, &reservation, queryLockReservation, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	return &reservation, nil
}

func (t *tx) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int

	if err := t.tx.GetContext(ctx, &count, queryCountActive, eventID); err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	return count, nil
}

func (t *tx) InsertHold(ctx context.Context, r models.Reservation) error {
	_, err := t.tx.ExecContext(ctx, queryInsertHold,
		r.ID, r.EventID, r.UserID, string(models.StateHold), r.ExpiresAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", err)
	}

	return nil
}

func (t *tx) ConfirmHold(ctx context.Context, id uuid.UUID, now time.Time) (*models.Reservation, error) {
	var reservation models.Reservation

	err := t.tx.QueryRowxContext(ctx, queryConfirmHold, id, now).StructScan(&reservation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to confirm reservation: %w", err)
	}

	return &reservation, nil
}

func (s *Storage) CreateEvent(ctx context.Context, event models.Event) (*models.Event, error) {
	const op = "storage.postgres.CreateEvent"

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.UpdatedAt = event.CreatedAt

	_, err := s.DB.ExecContext(ctx, queryCreateEvent,
		event.ID, event.Title, event.Capacity, event.IsActive, event.StartDate, event.EndDate, event.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

func (s *Storage) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const op = "storage.postgres.GetEvent"

	var event models.Event

	err := s.DB.GetContext(ctx, &event, queryGetEvent, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEventNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &event, nil
}

func (s *Storage) ListEvents(ctx context.Context) ([]models.Event, error) {
	const op = "storage.postgres.ListEvents"

	events := []models.Event{}

	if err := s.DB.SelectContext(ctx, &events, queryListEvents); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return events, nil
}

func (s *Storage) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	const op = "storage.postgres.GetReservation"

	var reservation models.Reservation

	err := s.DB.GetContext(ctx, &reservation, queryGetReservation, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrReservationNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &reservation, nil
}

// DeleteHold removes the reservation only while it is still a HOLD owned by
// userID. It reports whether a row was deleted.
func (s *Storage) DeleteHold(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	const op = "storage.postgres.DeleteHold"

	result, err := s.DB.ExecContext(ctx, queryDeleteHold, id, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return affected > 0, nil
}

func (s *Storage) CountReservations(ctx context.Context, eventID uuid.UUID) (hold, confirmed int, err error) {
	const op = "storage.postgres.CountReservations"

	var counts struct {
		Hold      int `db:"hold_count"`
		Confirmed int `db:"confirmed_count"`
	}

	if err = s.DB.GetContext(ctx, &counts, queryCountByState, eventID); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}

	return counts.Hold, counts.Confirmed, nil
}

// PurgeExpiredHolds deletes every HOLD whose expiry is at or before now in a
// single statement and returns the deleted rows.
func (s *Storage) PurgeExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	const op = "storage.postgres.PurgeExpiredHolds"

	purged := []models.Reservation{}

	if err := s.DB.SelectContext(ctx, &purged, queryPurgeExpiredHolds, now); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return purged, nil
}
