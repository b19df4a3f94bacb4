package media

import (
	"context"

	"github.com/geocoder89/accounthub/internal/observability"
)

type instrumentedUploader struct {
	next Uploader
	prom *observability.Prom
}

// Instrument decorates an Uploader with upload duration/result metrics.
func Instrument(next Uploader, prom *observability.Prom) Uploader {
	if prom == nil {
		return next
	}

	return &instrumentedUploader{next: next, prom: prom}
}

func (u *instrumentedUploader) Upload(ctx context.Context, localPath string) (string, error) {
	var url string

	err := u.prom.ObserveUpload(func() error {
		var err error
		url, err = u.next.Upload(ctx, localPath)
		return err
	})

	return url, err
}
