package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// GCSSource reads exported snapshots stored as JSON objects named
// snapshots/<userID>.json in a bucket. A missing object is an empty
// snapshot.
type GCSSource struct {
	bucket string
	open   func(ctx context.Context, object string) (io.ReadCloser, error)
}

// NewGCSSource reads from bucket through client.
func NewGCSSource(client *storage.Client, bucket string) *GCSSource {
	bkt := client.Bucket(bucket)
	return &GCSSource{
		bucket: bucket,
		open: func(ctx context.Context, object string) (io.ReadCloser, error) {
			return bkt.Object(object).NewReader(ctx)
		},
	}
}

// ObjectName returns the object holding userID's snapshot.
func ObjectName(userID string) string {
	return fmt.Sprintf("snapshots/%s.json", userID)
}

func (s *GCSSource) Load(ctx context.Context, userID string, now time.Time) (*model.Snapshot, error) {
	r, err := s.open(ctx, ObjectName(userID))
	if errors.Is(err, storage.ErrObjectNotExist) {
		return &model.Snapshot{UserID: userID, TakenAt: now}, nil
	}
	if err != nil {
		return nil, &FetchError{Source: "gcs", Part: "open " + s.bucket + "/" + ObjectName(userID), Err: err}
	}
	defer r.Close()

	snap, err := Decode(r)
	if err != nil {
		return nil, &FetchError{Source: "gcs", Part: "decode", Err: err}
	}
	if snap.UserID == "" {
		snap.UserID = userID
		fillOwner(snap)
	}
	if snap.UserID != userID {
		return nil, &FetchError{Source: "gcs", Part: "decode", Err: fmt.Errorf("object belongs to user %q", snap.UserID)}
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = now
	}
	return snap, nil
}
