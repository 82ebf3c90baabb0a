// Package media uploads user images from local temporary files to the object
// store and hands back their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sniffLen = 512

// ObjectStore is the subset of storage.Storage used by the uploader.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(rawURL string) (string, bool)
}

// Asset describes an uploaded object.
type Asset struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// Uploader moves local files to the media host.
type Uploader struct {
	store  ObjectStore
	prefix string
	log    *zap.Logger
}

func NewUploader(store ObjectStore, keyPrefix string, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		store:  store,
		prefix: strings.Trim(strings.TrimSpace(keyPrefix), "/"),
		log:    log,
	}
}

// Upload pushes the file at localPath to the media host. It returns nil when
// localPath is empty or the upload fails; the failure is logged. The local
// file is removed on every path.
func (u *Uploader) Upload(ctx context.Context, localPath string) *Asset {
	if strings.TrimSpace(localPath) == "" {
		return nil
	}
	defer u.removeLocal(localPath)

	asset, err := u.put(ctx, localPath)
	if err != nil {
		u.log.Error("media upload failed", zap.String("path", localPath), zap.Error(err))
		return nil
	}
	u.log.Debug("media uploaded", zap.String("key", asset.Key), zap.Int64("size", asset.Size))
	return asset
}

// Remove deletes a previously uploaded object by its public URL. URLs that do
// not belong to this media host are ignored.
func (u *Uploader) Remove(ctx context.Context, rawURL string) error {
	key, ok := u.store.KeyFromURL(rawURL)
	if !ok {
		return nil
	}
	if err := u.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) put(ctx context.Context, localPath string) (*Asset, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, errors.New("empty file")
	}

	contentType, err := detectContentType(file, localPath)
	if err != nil {
		return nil, err
	}

	key := u.objectKey(localPath)
	if err := u.store.Put(ctx, key, file, info.Size(), contentType); err != nil {
		return nil, err
	}

	return &Asset{
		Key:         key,
		URL:         u.store.URL(key),
		ContentType: contentType,
		Size:        info.Size(),
	}, nil
}

func (u *Uploader) objectKey(localPath string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(localPath))
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

func (u *Uploader) removeLocal(localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		u.log.Warn("failed to remove temporary upload", zap.String("path", localPath), zap.Error(err))
	}
}

// detectContentType sniffs the file header and rewinds the file.
func detectContentType(file *os.File, name string) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	contentType := http.DetectContentType(buf[:n])
	if contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			contentType = byExt
		}
	}
	return contentType, nil
}
