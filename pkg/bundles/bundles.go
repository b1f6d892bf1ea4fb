// Package bundles stores and serves built game bundles in object storage,
// keyed games/{gameID}/{file}.
package bundles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// ErrNotFound is returned when a bundle file does not exist.
var ErrNotFound = errors.New("bundle file not found")

// Store wraps a blob bucket holding bundle artifacts.
type Store struct {
	bucket *blob.Bucket
}

// Open connects to the bucket named by a gocloud URL (s3://..., file://...).
func Open(ctx context.Context, bucketURL string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bundle bucket: %w", err)
	}
	return &Store{bucket: bucket}, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}

func key(gameID, file string) string {
	return path.Join("games", gameID, path.Clean("/"+file))
}

// Put uploads one bundle file.
func (s *Store) Put(ctx context.Context, gameID, file string, data []byte, contentType string) error {
	w, err := s.bucket.NewWriter(ctx, key(gameID, file), &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Get reads one bundle file.
func (s *Store) Get(ctx context.Context, gameID, file string) ([]byte, error) {
	r, err := s.bucket.NewReader(ctx, key(gameID, file), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// DeleteGame removes every file belonging to a game's bundle.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	prefix := path.Join("games", gameID) + "/"
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.bucket.Delete(ctx, obj.Key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return err
		}
	}
}

// ContentType maps a bundle file name to its MIME type.
func ContentType(file string) string {
	switch {
	case strings.HasSuffix(file, ".js"):
		return "application/javascript"
	case strings.HasSuffix(file, ".wasm"):
		return "application/wasm"
	case strings.HasSuffix(file, ".png"):
		return "image/png"
	case strings.HasSuffix(file, ".jpg"), strings.HasSuffix(file, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(file, ".apk"):
		return "application/vnd.android.package-archive"
	default:
		return "text/html"
	}
}
