package devserver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jlyon1/party-camera-ios/ccc/db"
)

type ImageRepository interface {
	// GetByID retrieves an Image by its ID; nil when it does not exist
	GetByID(ctx context.Context, id string) (*Image, error)
	// GetByFileName retrieves an Image by its object name; nil when it does not exist
	GetByFileName(ctx context.Context, fileName string) (*Image, error)
	// ListByEvent returns an event's images, newest first
	ListByEvent(ctx context.Context, eventID int) ([]*Image, error)
	// Create adds a new Image
	Create(ctx context.Context, image *Image) error
}

// SQLiteImageRepository implements ImageRepository using SQLite
type SQLiteImageRepository struct {
	db *sql.DB
}

// NewSQLiteImageRepository creates a new SQLite-based ImageRepository.
// The events table must already exist.
func NewSQLiteImageRepository(db *sql.DB) (*SQLiteImageRepository, error) {
	repo := &SQLiteImageRepository{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return repo, nil
}

func (r *SQLiteImageRepository) createTables() error {
	createImagesTable := `
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL UNIQUE,
		content_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		thumbnail_name TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_event ON images(event_id, created_at);`

	_, err := r.db.Exec(createImagesTable)
	return err
}

const selectImage = `
	SELECT id, event_id, file_name, content_type, size_bytes, thumbnail_name, created_at
	FROM images`

func (r *SQLiteImageRepository) GetByID(ctx context.Context, id string) (*Image, error) {
	return r.getOne(ctx, selectImage+` WHERE id = ?`, id)
}

func (r *SQLiteImageRepository) GetByFileName(ctx context.Context, fileName string) (*Image, error) {
	return r.getOne(ctx, selectImage+` WHERE file_name = ?`, fileName)
}

func (r *SQLiteImageRepository) getOne(ctx context.Context, query string, arg any) (*Image, error) {
	image, err := scanImage(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return image, nil
}

func (r *SQLiteImageRepository) ListByEvent(ctx context.Context, eventID int) ([]*Image, error) {
	rows, err := r.db.QueryContext(ctx, selectImage+` WHERE event_id = ? ORDER BY created_at DESC, rowid DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []*Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}

	return images, rows.Err()
}

func (r *SQLiteImageRepository) Create(ctx context.Context, image *Image) error {
	query := `
	INSERT INTO images (id, event_id, file_name, content_type, size_bytes, thumbnail_name, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		image.ID, image.EventID, image.FileName, image.ContentType, image.SizeBytes,
		db.NullableString(image.ThumbnailName), db.TimeToString(image.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

func scanImage(row rowScanner) (*Image, error) {
	image := &Image{}
	var thumbnail sql.NullString
	var createdAtStr string

	err := row.Scan(&image.ID, &image.EventID, &image.FileName, &image.ContentType,
		&image.SizeBytes, &thumbnail, &createdAtStr)
	if err != nil {
		return nil, err
	}

	image.ThumbnailName = thumbnail.String
	if image.CreatedAt, err = db.StringToTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	return image, nil
}
