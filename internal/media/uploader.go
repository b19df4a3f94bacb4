package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var ErrUploadFailed = errors.New("media upload failed")

// Uploader pushes a locally staged file to durable media storage and
// returns its public URL. Implementations must honor ctx cancellation.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// StageFile copies an incoming multipart file to dir before the remote
// upload. The caller removes the staged file when done.
func StageFile(fh *multipart.FileHeader, dir string) (string, error) {
	src, err := fh.Open()

	if err != nil {
		return "", err
	}

	defer func() { _ = src.Close() }()

	name := uuid.NewString() + filepath.Ext(fh.Filename)
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)

	if err != nil {
		return "", err
	}

	_, err = io.Copy(dst, src)

	closeErr := dst.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}

// objectKey buckets uploads by date so the bucket stays browsable.
func objectKey(localPath string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), filepath.Ext(localPath))
}
