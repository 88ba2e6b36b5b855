// Package logarchive writes the final logs of removed instances to object
// storage as newline-delimited JSON.
package logarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/flowforge/forge-go/internal/containers"
)

// ObjectPutter is the subset of *minio.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Archiver struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
	newID  func() string
}

func New(client ObjectPutter, bucket string) (*Archiver, error) {
	if client == nil {
		return nil, errors.New("object store client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// ObjectKey places archives under the project, partitioned by day.
func ObjectKey(projectID string, at time.Time, id string) string {
	at = at.UTC()
	return fmt.Sprintf("projects/%s/%s/%d-%s.ndjson", strings.TrimSpace(projectID), at.Format("2006/01/02"), at.Unix(), id)
}

func (a *Archiver) Archive(ctx context.Context, projectID string, lines []containers.LogLine) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return errors.New("project id is required")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, line := range lines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encode log line: %w", err)
		}
	}

	key := ObjectKey(projectID, a.now(), a.newID())
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType:  "application/x-ndjson",
		UserMetadata: map[string]string{"project-id": projectID},
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}
