package devserver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jlyon1/party-camera-ios/ccc/db"
)

type EventRepository interface {
	// GetByID retrieves an Event by its ID; nil when it does not exist
	GetByID(ctx context.Context, id int) (*Event, error)
	// GetAll retrieves all Events, newest start first
	GetAll(ctx context.Context) ([]*Event, error)
	// Create adds a new Event and assigns its ID
	Create(ctx context.Context, event *Event) error
}

// SQLiteEventRepository implements EventRepository using SQLite
type SQLiteEventRepository struct {
	db *sql.DB
}

// NewSQLiteEventRepository creates a new SQLite-based EventRepository
func NewSQLiteEventRepository(db *sql.DB) (*SQLiteEventRepository, error) {
	repo := &SQLiteEventRepository{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return repo, nil
}

func (r *SQLiteEventRepository) createTables() error {
	createEventsTable := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT,
		created_at TEXT NOT NULL
	);`

	_, err := r.db.Exec(createEventsTable)
	return err
}

func (r *SQLiteEventRepository) GetByID(ctx context.Context, id int) (*Event, error) {
	query := `
	SELECT id, name, description, start_at, end_at, created_at
	FROM events WHERE id = ?`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}
	return event, nil
}

func (r *SQLiteEventRepository) GetAll(ctx context.Context) ([]*Event, error) {
	query := `
	SELECT id, name, description, start_at, end_at, created_at
	FROM events ORDER BY start_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

func (r *SQLiteEventRepository) Create(ctx context.Context, event *Event) error {
	query := `
	INSERT INTO events (name, description, start_at, end_at, created_at)
	VALUES (?, ?, ?, ?, ?)`

	var endAt *string
	if event.End != nil {
		s := db.TimeToString(*event.End)
		endAt = &s
	}

	res, err := r.db.ExecContext(ctx, query,
		event.Name, event.Description,
		db.TimeToString(event.Start), endAt, db.TimeToString(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	event.ID = int(id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	event := &Event{}
	var startStr, createdAtStr string
	var endStr sql.NullString

	if err := row.Scan(&event.ID, &event.Name, &event.Description, &startStr, &endStr, &createdAtStr); err != nil {
		return nil, err
	}

	var err error
	if event.Start, err = db.StringToTime(startStr); err != nil {
		return nil, fmt.Errorf("failed to parse start_at timestamp: %w", err)
	}
	if event.CreatedAt, err = db.StringToTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	if endStr.Valid {
		var end time.Time
		if end, err = db.StringToTime(endStr.String); err != nil {
			return nil, fmt.Errorf("failed to parse end_at timestamp: %w", err)
		}
		event.End = &end
	}

	return event, nil
}
