package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"mycase-designer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	metaExt  = ".json"
	imageExt = ".png"
)

// fsStore keeps one JSON metadata file and one PNG per design.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// paths resolves the files of a design and refuses anything outside basePath.
func (s *fsStore) paths(id string) (meta, img string, err error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", "", fmt.Errorf("invalid design id %q", id)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", "", err
	}
	meta = filepath.Join(absBase, id+metaExt)
	if !strings.HasPrefix(meta, absBase+string(filepath.Separator)) {
		return "", "", fmt.Errorf("invalid path: access denied")
	}
	return meta, filepath.Join(absBase, id+imageExt), nil
}

func (s *fsStore) Save(ctx context.Context, design *core.SavedDesign) error {
	if design.SessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	design.Prepare(ulid.Make().String(), time.Now())

	metaPath, imgPath, err := s.paths(design.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{
		"session_id": design.SessionID,
		"design_id":  design.ID,
		"path":       metaPath,
	})

	data, err := json.Marshal(design)
	if err != nil {
		log.WithError(err).Error("Failed to marshal design for saving")
		return err
	}
	if err := os.WriteFile(imgPath, design.Image, 0644); err != nil {
		log.WithError(err).Error("Failed to write design image")
		return err
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write design file")
		return err
	}

	log.Info("Design saved successfully")
	return nil
}

func (s *fsStore) readMeta(path string) (*core.SavedDesign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d core.SavedDesign
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *fsStore) List(ctx context.Context, sessionID string) ([]*core.SavedDesign, error) {
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "path": s.basePath})

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.SavedDesign{}, nil
		}
		log.WithError(err).Error("Failed to read storage directory")
		return nil, err
	}

	designs := make([]*core.SavedDesign, 0)
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != metaExt {
			continue
		}
		d, err := s.readMeta(filepath.Join(s.basePath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read design file %s, skipping", file.Name())
			continue
		}
		if d.SessionID == sessionID {
			designs = append(designs, d.Summary())
		}
	}
	slices.SortFunc(designs, core.Newer)

	log.Debugf("Listed %d designs", len(designs))
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.SavedDesign, error) {
	metaPath, imgPath, err := s.paths(id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"design_id": id, "path": metaPath})

	d, err := s.readMeta(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found")
			return nil, fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
		}
		log.WithError(err).Error("Failed to read design file")
		return nil, err
	}
	if d.Image, err = os.ReadFile(imgPath); err != nil {
		log.WithError(err).Error("Failed to read design image")
		return nil, err
	}

	log.Debug("Design retrieved successfully")
	return d, nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	metaPath, imgPath, err := s.paths(id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"design_id": id, "path": metaPath})

	if err := os.Remove(metaPath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Design file not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
		}
		log.WithError(err).Error("Failed to delete design file")
		return err
	}
	if err := os.Remove(imgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to delete design image")
	}

	log.Info("Design deleted successfully")
	return nil
}
