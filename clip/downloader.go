package clip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

// Downloader streams remote assets to local files.
type Downloader struct {
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

func NewDownloader(cfg *config.Config, logger *slog.Logger) *Downloader {
	return &Downloader{
		client:  &http.Client{},
		maxSize: cfg.MaxDownloadSize,
		logger:  logging.WithComponent(logger, "clip"),
	}
}

// Download copies the body at url to dest. The body is written to a sibling
// ".part" file and renamed into place only after a complete copy, so dest never
// exists unless the download succeeded.
func (d *Downloader) Download(ctx context.Context, url, dest string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file, status: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(part)
		}
	}()

	var body io.Reader = resp.Body
	if d.maxSize > 0 {
		// Use a LimitedReader to enforce max download size
		body = &io.LimitedReader{R: resp.Body, N: d.maxSize + 1}
	}
	written, err := io.Copy(f, body)
	if err != nil {
		return fmt.Errorf("failed to write downloaded file: %w", err)
	}
	if d.maxSize > 0 && written > d.maxSize {
		return fmt.Errorf("download exceeds limit of %s", humanize.IBytes(uint64(d.maxSize)))
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(part, dest); err != nil {
		return err
	}

	d.logger.Debug("clip downloaded", "dest", dest, "size", humanize.IBytes(uint64(written)))
	return nil
}
