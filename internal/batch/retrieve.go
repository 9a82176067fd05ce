package batch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackzampolin/chaptercast/internal/outdir"
	"github.com/jackzampolin/chaptercast/internal/storage"
)

// RetrieveResult holds the outcome of the download and cleanup phase.
type RetrieveResult struct {
	// Files maps chapter title to the downloaded local file.
	Files map[string]string
	// DownloadErrors covers output URI parse failures and failed downloads.
	DownloadErrors map[string]*Error
	// DeletionErrors lists chapters whose audio was downloaded but whose
	// remote copy could not be deleted.
	DeletionErrors map[string]*Error
	Deleted        int
}

// DeletionsAttempted is the number of remote deletes tried. A delete is
// only tried after a successful download.
func (r *RetrieveResult) DeletionsAttempted() int {
	return r.Deleted + len(r.DeletionErrors)
}

// Retriever downloads completed jobs and removes the remote objects.
type Retriever struct {
	store  storage.ObjectStore
	dir    *outdir.Dir
	cfg    Config
	logger *slog.Logger
}

// NewRetriever creates a Retriever writing into dir.
func NewRetriever(store storage.ObjectStore, dir *outdir.Dir, cfg Config) *Retriever {
	return &Retriever{store: store, dir: dir, cfg: cfg, logger: cfg.logger()}
}

// Retrieve processes each completed job independently: resolve the object
// key, download, then delete the remote object only if the download succeeded.
func (r *Retriever) Retrieve(ctx context.Context, jobs []*Job) *RetrieveResult {
	result := &RetrieveResult{
		Files:          make(map[string]string),
		DownloadErrors: make(map[string]*Error),
		DeletionErrors: make(map[string]*Error),
	}

	r.logger.Info("downloading completed audio", "files", len(jobs), "dir", r.dir.Path())

	for _, job := range jobs {
		if job.Status != StatusCompleted {
			continue
		}
		log := r.logger.With("chapter", job.Chapter, "job_id", job.ID)

		key, fallback, err := ObjectKey(job.OutputURI, r.cfg.Bucket)
		if err != nil {
			log.Error("could not determine object key", "uri", job.OutputURI, "error", err)
			result.DownloadErrors[job.Chapter] = &Error{
				Kind:    KindParse,
				Chapter: job.Chapter,
				JobID:   job.ID,
				Detail:  "error parsing output location",
				Err:     err,
			}
			continue
		}
		if fallback {
			log.Warn("output path does not start with bucket name, using full path as key", "uri", job.OutputURI, "key", key)
		}

		localPath := r.dir.ChapterAudioPath(job.Chapter, r.cfg.Format)
		if err := r.store.Download(ctx, r.cfg.Bucket, key, localPath); err != nil {
			log.Error("download failed", "key", key, "error", err)
			result.DownloadErrors[job.Chapter] = &Error{
				Kind:    KindDownload,
				Chapter: job.Chapter,
				JobID:   job.ID,
				Err:     err,
			}
			continue
		}
		result.Files[job.Chapter] = localPath
		log.Info("downloaded", "key", key, "path", localPath)

		if err := r.store.Delete(ctx, r.cfg.Bucket, key); err != nil {
			log.Warn("failed to delete remote object, file remains in storage", "key", key, "error", err)
			result.DeletionErrors[job.Chapter] = &Error{
				Kind:    KindDeletion,
				Chapter: job.Chapter,
				JobID:   job.ID,
				Err:     err,
			}
			continue
		}
		result.Deleted++
		log.Debug("deleted remote object", "key", key)
	}

	return result
}

// ObjectKey derives the object key from a task output URI. Output URIs are
// path-style ("https://s3.{region}.amazonaws.com/{bucket}/{key}"), so a
// leading bucket segment is stripped. When the path does not start with
// the bucket, the whole path is used as the key and fallback is true. A
// path naming only the bucket is an error.
func ObjectKey(outputURI, bucket string) (key string, fallback bool, err error) {
	u, err := url.Parse(outputURI)
	if err != nil {
		return "", false, fmt.Errorf("invalid output URI %q: %w", outputURI, err)
	}
	if u.Path == "" {
		return "", false, fmt.Errorf("could not parse path from output URI %q", outputURI)
	}

	trimmed := strings.TrimLeft(u.Path, "/")
	if first, rest, _ := strings.Cut(trimmed, "/"); first == bucket {
		if rest == "" {
			return "", false, fmt.Errorf("failed to determine object key from output URI %q", outputURI)
		}
		return rest, false, nil
	}

	if trimmed == "" {
		return "", false, fmt.Errorf("failed to determine object key from output URI %q", outputURI)
	}
	return trimmed, true, nil
}
