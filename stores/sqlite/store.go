package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"mycase-designer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	designTableStmt := `
	CREATE TABLE IF NOT EXISTS designs (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT,
		product TEXT,
		image BLOB,
		state BLOB,
		created_at INTEGER NOT NULL
	);`
	if _, err = db.Exec(designTableStmt); err != nil {
		log.Fatalf("failed to create designs table: %v", err)
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_designs_session ON designs(session_id, created_at);`); err != nil {
		log.Fatalf("failed to create designs index: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Save(ctx context.Context, design *core.SavedDesign) error {
	if design.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	design.Prepare(ulid.Make().String(), time.Now())

	log := logrus.WithFields(logrus.Fields{
		"session_id":   design.SessionID,
		"design_id":    design.ID,
		"image_length": len(design.Image),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO designs (id, session_id, name, product, image, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		design.ID, design.SessionID, design.Name, design.Product, design.Image, []byte(design.State), design.CreatedAt.UnixMilli())
	if err != nil {
		log.WithError(err).Error("Failed to save design")
		return err
	}

	log.Info("Design saved successfully")
	return nil
}

func (s *sqliteStore) List(ctx context.Context, sessionID string) ([]*core.SavedDesign, error) {
	log := logrus.WithField("session_id", sessionID)

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, name, product, created_at FROM designs WHERE session_id = ? ORDER BY created_at DESC, id DESC",
		sessionID)
	if err != nil {
		log.WithError(err).Error("Failed to list designs")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.WithError(cerr).Warn("Failed to close design rows")
		}
	}()

	designs := make([]*core.SavedDesign, 0)
	for rows.Next() {
		var d core.SavedDesign
		var name, product sql.NullString
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.SessionID, &name, &product, &createdAt); err != nil {
			log.WithError(err).Error("Failed to scan design")
			continue
		}
		d.Name, d.Product = name.String, product.String
		d.CreatedAt = time.UnixMilli(createdAt)
		designs = append(designs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	log.Debugf("Listed %d designs", len(designs))
	return designs, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.SavedDesign, error) {
	log := logrus.WithField("design_id", id)

	var d core.SavedDesign
	var name, product sql.NullString
	var state []byte
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, session_id, name, product, image, state, created_at FROM designs WHERE id = ?",
		id).Scan(&d.ID, &d.SessionID, &name, &product, &d.Image, &state, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Design with specified ID not found")
			return nil, fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve design")
		return nil, err
	}
	d.Name, d.Product = name.String, product.String
	if len(state) > 0 {
		d.State = state
	}
	d.CreatedAt = time.UnixMilli(createdAt)

	log.Debug("Design retrieved successfully")
	return &d, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	log := logrus.WithField("design_id", id)

	result, err := s.db.ExecContext(ctx, "DELETE FROM designs WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete design")
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
	}

	log.Info("Design deleted successfully")
	return nil
}

// Close releases the database.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
