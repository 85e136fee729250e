package stores

import (
	"context"
	"fmt"

	"mycase-designer/config"
	"mycase-designer/core"
	"mycase-designer/stores/aws"
	"mycase-designer/stores/filesystem"
	"mycase-designer/stores/memory"
	"mycase-designer/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the configured design store, capped at MaxSnapshots
// designs per session.
func GetStore(cfg config.Storage) core.DesignStore {
	var store core.DesignStore

	storageField := logrus.Fields{
		"storageType":  cfg.Type,
		"maxSnapshots": cfg.MaxSnapshots,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		if cfg.BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.BucketName
		store = aws.NewStore(cfg.BucketName)
	case "", "memory":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		logrus.WithField("storageType", cfg.Type).Fatal("Unknown storage type")
	}
	logrus.WithFields(storageField).Info("Use storage")
	return Limit(store, cfg.MaxSnapshots)
}

// limitedStore drops a session's oldest designs to stay within limit.
type limitedStore struct {
	core.DesignStore
	limit int
}

// Limit wraps store so each session keeps at most n designs. A non-positive
// n disables the cap.
func Limit(store core.DesignStore, n int) core.DesignStore {
	if n <= 0 {
		return store
	}
	return &limitedStore{DesignStore: store, limit: n}
}

func (s *limitedStore) Save(ctx context.Context, design *core.SavedDesign) error {
	existing, err := s.DesignStore.List(ctx, design.SessionID)
	if err != nil {
		return fmt.Errorf("count designs: %w", err)
	}

	// existing is newest first.
	for i := len(existing) - 1; i >= s.limit-1 && i >= 0; i-- {
		oldest := existing[i]
		if err := s.DesignStore.Delete(ctx, oldest.ID); err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": design.SessionID,
				"design_id":  oldest.ID,
			}).WithError(err).Error("Failed to delete oldest design")
		}
	}
	return s.DesignStore.Save(ctx, design)
}
