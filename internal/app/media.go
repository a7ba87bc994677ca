package app

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"wacli/internal/store"
)

type mediaJob struct {
	chatJID string
	msgID   string
}

// enqueueMedia hands a job to the background worker without blocking the
// event handler. A full queue drops the job: the message itself is stored,
// and the next sync will re-observe and re-enqueue it.
func (a *App) enqueueMedia(job mediaJob) {
	a.mediaPending.Add(1)
	select {
	case a.mediaJobs <- job:
	default:
		a.mediaPending.Add(-1)
		a.mediaDropped.Add(1)
		a.log.Warn("media queue full, dropping job", "chat", job.chatJID, "id", job.msgID)
	}
}

// runMediaWorker drains the job queue. Failures are logged and not
// retried. On shutdown the in-flight job finishes before the worker exits.
func (a *App) runMediaWorker() {
	defer close(a.workerDone)
	for {
		select {
		case <-a.workerCtx.Done():
			return
		case job := <-a.mediaJobs:
			// Not derived from workerCtx: shutdown lets the current job finish.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := a.downloadMediaJob(ctx, job); err != nil {
				a.log.Warn("media download failed", "chat", job.chatJID, "id", job.msgID, "error", err)
			}
			cancel()
			a.mediaPending.Add(-1)
		}
	}
}

// downloadMediaJob reads the download tuple, fetches the blob through the
// protocol client, and records the local path.
func (a *App) downloadMediaJob(ctx context.Context, job mediaJob) error {
	if a.wa == nil {
		return fmt.Errorf("protocol client not open")
	}

	info, err := a.db.GetMediaDownloadInfo(job.chatJID, job.msgID)
	if err != nil {
		return err
	}
	if info.MediaType == "" || info.DirectPath == "" || len(info.MediaKey) == 0 {
		return fmt.Errorf("message %s/%s has no downloadable media metadata", job.chatJID, job.msgID)
	}

	target, err := a.ResolveMediaOutputPath(info, "")
	if err != nil {
		return err
	}

	n, err := a.wa.DownloadMediaToFile(ctx, info.DirectPath, info.FileEncSHA256, info.FileSHA256,
		info.MediaKey, info.FileLength, info.MediaType, info.MimeType, target)
	if err != nil {
		return err
	}

	if err := a.db.MarkMediaDownloaded(job.chatJID, job.msgID, target, time.Now().UTC()); err != nil {
		return err
	}
	a.log.Debug("media downloaded", "chat", job.chatJID, "id", job.msgID, "path", target, "bytes", n)
	return nil
}

// ResolveMediaOutputPath picks where a media file lands. With no override
// it is <storeDir>/media/<yyyy>/<mm>/<filename-or-msgID.ext>, dated by the
// message timestamp. An override ending in a path separator is treated as a
// directory and keeps the derived filename inside it; any other override is
// used verbatim as the file path, even if it names an existing directory.
func (a *App) ResolveMediaOutputPath(info store.MediaDownloadInfo, override string) (string, error) {
	name := filepath.Base(strings.TrimSpace(info.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = info.MsgID + mediaExt(info.MimeType, info.MediaType)
	}

	if override != "" {
		if strings.HasSuffix(override, string(filepath.Separator)) {
			return filepath.Join(override, name), nil
		}
		return override, nil
	}

	ts := info.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return filepath.Join(a.storeDir, "media", ts.UTC().Format("2006"), ts.UTC().Format("01"), name), nil
}

// mediaExt guesses a file extension from the mime type, then the media
// type, falling back to .bin.
func mediaExt(mimeType, mediaType string) string {
	if mimeType != "" {
		// Strip codec parameters like "audio/ogg; codecs=opus".
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		switch mimeType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		case "video/mp4":
			return ".mp4"
		case "audio/ogg":
			return ".ogg"
		case "application/pdf":
			return ".pdf"
		}
		if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	switch mediaType {
	case "image", "sticker":
		return ".jpg"
	case "video":
		return ".mp4"
	case "audio":
		return ".ogg"
	}
	return ".bin"
}
