package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"mycase-designer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps saved designs in process memory.
type memStore struct {
	mu      sync.RWMutex
	designs map[string]*core.SavedDesign
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{designs: make(map[string]*core.SavedDesign)}
}

func (s *memStore) Save(ctx context.Context, design *core.SavedDesign) error {
	if design.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	design.Prepare(ulid.Make().String(), time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *design
	s.designs[design.ID] = &stored
	logrus.WithFields(logrus.Fields{
		"session_id":   design.SessionID,
		"design_id":    design.ID,
		"image_length": len(design.Image),
	}).Info("Design saved successfully")
	return nil
}

func (s *memStore) List(ctx context.Context, sessionID string) ([]*core.SavedDesign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	designs := make([]*core.SavedDesign, 0)
	for _, d := range s.designs {
		if d.SessionID == sessionID {
			designs = append(designs, d.Summary())
		}
	}
	slices.SortFunc(designs, core.Newer)

	logrus.WithField("session_id", sessionID).Debugf("Listed %d designs", len(designs))
	return designs, nil
}

func (s *memStore) Get(ctx context.Context, id string) (*core.SavedDesign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("design_id", id)
	d, ok := s.designs[id]
	if !ok {
		log.Warn("Design with specified ID not found")
		return nil, fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
	}
	found := *d
	log.Debug("Design retrieved successfully")
	return &found, nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("design_id", id)
	if _, ok := s.designs[id]; !ok {
		log.Warn("Design not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
	}
	delete(s.designs, id)
	log.Info("Design deleted successfully")
	return nil
}
