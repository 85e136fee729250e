package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrDesignNotFound = errors.New("design not found")

type (
	// SavedDesign is a snapshot of a session's design kept for later download.
	SavedDesign struct {
		ID        string          `json:"id"`
		SessionID string          `json:"sessionId"`
		Name      string          `json:"name"`
		Product   string          `json:"product"`
		Image     []byte          `json:"-"`
		State     json.RawMessage `json:"state,omitempty"` // Not included in list views.
		CreatedAt time.Time       `json:"createdAt"`
	}

	// DesignStore persists saved designs.
	DesignStore interface {
		// Save stores a new design. ID and CreatedAt are assigned when empty.
		Save(ctx context.Context, design *SavedDesign) error

		// List returns a session's designs, newest first, without Image and State.
		List(ctx context.Context, sessionID string) ([]*SavedDesign, error)

		Get(ctx context.Context, id string) (*SavedDesign, error)

		Delete(ctx context.Context, id string) error
	}
)

// Prepare fills in the ID and creation time of a design about to be saved.
func (d *SavedDesign) Prepare(id string, now time.Time) {
	if d.ID == "" {
		d.ID = id
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
}

// Summary returns a copy without the large fields.
func (d *SavedDesign) Summary() *SavedDesign {
	return &SavedDesign{
		ID:        d.ID,
		SessionID: d.SessionID,
		Name:      d.Name,
		Product:   d.Product,
		CreatedAt: d.CreatedAt,
	}
}

// Newer orders designs newest first; IDs break ties.
func Newer(a, b *SavedDesign) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}
