package logarchive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/flowforge/forge-go/internal/containers"
)

type fakePutter struct {
	bucket string
	key    string
	body   string
	opts   minio.PutObjectOptions
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(raw)) != objectSize {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.bucket, f.key, f.body, f.opts = bucketName, objectName, string(raw), opts
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got := ObjectKey("p1", at, "abc")
	want := "projects/p1/2024/05/01/1714557600-abc.ndjson"
	if got != want {
		t.Fatalf("ObjectKey()=%q, want %q", got, want)
	}
}

func TestArchiveWritesNDJSON(t *testing.T) {
	putter := &fakePutter{}
	a, err := New(putter, "forge-logs")
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	a.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	a.newID = func() string { return "fixed" }

	lines := []containers.LogLine{
		{Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), Source: "docker", Message: "started"},
		{Message: "stopped"},
	}
	if err := a.Archive(context.Background(), "p1", lines); err != nil {
		t.Fatalf("Archive() err=%v", err)
	}
	if putter.bucket != "forge-logs" || putter.key != "projects/p1/2024/05/01/1714557600-fixed.ndjson" {
		t.Fatalf("put %s/%s", putter.bucket, putter.key)
	}
	if putter.opts.ContentType != "application/x-ndjson" || putter.opts.UserMetadata["project-id"] != "p1" {
		t.Fatalf("opts=%+v", putter.opts)
	}

	scanner := bufio.NewScanner(strings.NewReader(putter.body))
	var got []containers.LogLine
	for scanner.Scan() {
		var line containers.LogLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("Unmarshal() err=%v", err)
		}
		got = append(got, line)
	}
	if len(got) != 2 || got[0].Message != "started" || got[1].Message != "stopped" {
		t.Fatalf("archived=%+v", got)
	}
}

func TestArchiveWrapsPutError(t *testing.T) {
	a, _ := New(&fakePutter{err: errors.New("access denied")}, "forge-logs")
	err := a.Archive(context.Background(), "p1", []containers.LogLine{{Message: "x"}})
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("Archive() err=%v", err)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, "b"); err == nil {
		t.Fatalf("New(nil) expected error")
	}
	if _, err := New(&fakePutter{}, " "); err == nil {
		t.Fatalf("New() without bucket expected error")
	}
}

func TestArchiverSatisfiesLogArchiver(t *testing.T) {
	var _ containers.LogArchiver = (*Archiver)(nil)
}
