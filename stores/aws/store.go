package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"slices"
	"time"

	"mycase-designer/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Key layout:
//
//	designs/<id>.json          metadata and state
//	designs/<id>.png           exported image
//	sessions/<session>/<id>    empty marker used for listing
const (
	designPrefix  = "designs/"
	sessionPrefix = "sessions/"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// checkID rejects ids that would escape their prefix.
func checkID(id string) error {
	if path.Base(id) != id {
		return fmt.Errorf("invalid id %q: must not be a path", id)
	}
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q: must not be empty or a dot directory", id)
	}
	return nil
}

func metaKey(id string) string  { return designPrefix + id + ".json" }
func imageKey(id string) string { return designPrefix + id + ".png" }
func markerKey(sessionID, id string) string {
	return path.Join(sessionPrefix, sessionID, id)
}

func (s *s3Store) put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *s3Store) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, core.ErrDesignNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *s3Store) remove(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *s3Store) Save(ctx context.Context, design *core.SavedDesign) error {
	if err := checkID(design.SessionID); err != nil {
		return err
	}
	design.Prepare(ulid.Make().String(), time.Now())
	if err := checkID(design.ID); err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"session_id": design.SessionID, "design_id": design.ID})

	data, err := json.Marshal(design)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}
	if err := s.put(ctx, imageKey(design.ID), "image/png", design.Image); err != nil {
		return fmt.Errorf("failed to upload design image %s: %w", design.ID, err)
	}
	if err := s.put(ctx, metaKey(design.ID), "application/json", data); err != nil {
		return fmt.Errorf("failed to upload design %s: %w", design.ID, err)
	}
	if err := s.put(ctx, markerKey(design.SessionID, design.ID), "text/plain", nil); err != nil {
		return fmt.Errorf("failed to index design %s: %w", design.ID, err)
	}

	log.Info("Design saved successfully")
	return nil
}

func (s *s3Store) meta(ctx context.Context, id string) (*core.SavedDesign, error) {
	data, err := s.get(ctx, metaKey(id))
	if err != nil {
		return nil, err
	}
	var d core.SavedDesign
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design %s: %w", id, err)
	}
	return &d, nil
}

func (s *s3Store) List(ctx context.Context, sessionID string) ([]*core.SavedDesign, error) {
	if err := checkID(sessionID); err != nil {
		return nil, err
	}
	log := logrus.WithField("session_id", sessionID)

	designs := make([]*core.SavedDesign, 0)
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(sessionPrefix + sessionID + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list designs for session %s: %w", sessionID, err)
		}
		for _, object := range page.Contents {
			id := path.Base(aws.ToString(object.Key))
			d, err := s.meta(ctx, id)
			if err != nil {
				log.WithError(err).Warnf("Failed to read design %s, skipping", id)
				continue
			}
			designs = append(designs, d.Summary())
		}
	}
	slices.SortFunc(designs, core.Newer)

	log.Debugf("Listed %d designs", len(designs))
	return designs, nil
}

func (s *s3Store) Get(ctx context.Context, id string) (*core.SavedDesign, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	d, err := s.meta(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrDesignNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
		}
		return nil, fmt.Errorf("failed to get design %s: %w", id, err)
	}
	if d.Image, err = s.get(ctx, imageKey(id)); err != nil {
		return nil, fmt.Errorf("failed to get design image %s: %w", id, err)
	}
	return d, nil
}

func (s *s3Store) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	d, err := s.meta(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrDesignNotFound) {
			return fmt.Errorf("%w: %s", core.ErrDesignNotFound, id)
		}
		return fmt.Errorf("failed to get design %s: %w", id, err)
	}
	for _, key := range []string{markerKey(d.SessionID, id), imageKey(id), metaKey(id)} {
		if err := s.remove(ctx, key); err != nil {
			return fmt.Errorf("failed to delete design %s: %w", id, err)
		}
	}
	logrus.WithField("design_id", id).Info("Design deleted successfully")
	return nil
}
