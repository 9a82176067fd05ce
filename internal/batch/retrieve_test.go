package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackzampolin/chaptercast/internal/outdir"
)

func preparedDir(t *testing.T) *outdir.Dir {
	t.Helper()
	dir, err := outdir.New(filepath.Join(t.TempDir(), "out"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := dir.Prepare(); err != nil {
		t.Fatal(err)
	}
	return dir
}

func completedJob(id, chapter, uri string) *Job {
	return &Job{ID: id, Chapter: chapter, Status: StatusCompleted, OutputURI: uri}
}

const uriBase = "https://s3.ca-central-1.amazonaws.com/test-bucket/"

func TestRetrieve(t *testing.T) {
	store := newFakeStore()
	store.put("test-bucket", "prefix/task-1.mp3", []byte("audio one"))
	store.put("test-bucket", "prefix/task-2.mp3", []byte("audio two"))
	dir := preparedDir(t)

	jobs := []*Job{
		completedJob("task-1", "Chapter 1", uriBase+"prefix/task-1.mp3"),
		completedJob("task-2", "Chapter 2", uriBase+"prefix/task-2.mp3"),
	}
	res := NewRetriever(store, dir, testConfig()).Retrieve(context.Background(), jobs)

	if len(res.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(res.Files))
	}
	if len(res.DownloadErrors) != 0 || len(res.DeletionErrors) != 0 {
		t.Errorf("unexpected errors: %v %v", res.DownloadErrors, res.DeletionErrors)
	}
	if res.Deleted != 2 || res.DeletionsAttempted() != 2 {
		t.Errorf("expected 2 deletions, got %d of %d", res.Deleted, res.DeletionsAttempted())
	}

	path := filepath.Join(dir.Path(), "Chapter 1.mp3")
	if res.Files["Chapter 1"] != path {
		t.Errorf("expected %s, got %s", path, res.Files["Chapter 1"])
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "audio one" {
		t.Errorf("unexpected content %q", data)
	}
	if len(store.objects) != 0 {
		t.Errorf("expected remote objects removed, %d left", len(store.objects))
	}
}

func TestRetrieveDownloadFailureSkipsDelete(t *testing.T) {
	store := newFakeStore()
	store.put("test-bucket", "prefix/task-2.mp3", []byte("audio two"))
	dir := preparedDir(t)

	jobs := []*Job{
		completedJob("task-1", "Chapter 1", uriBase+"prefix/task-1.mp3"),
		completedJob("task-2", "Chapter 2", uriBase+"prefix/task-2.mp3"),
	}
	res := NewRetriever(store, dir, testConfig()).Retrieve(context.Background(), jobs)

	e, ok := res.DownloadErrors["Chapter 1"]
	if !ok || e.Kind != KindDownload {
		t.Fatalf("expected download error for Chapter 1, got %v", res.DownloadErrors)
	}
	if _, ok := res.Files["Chapter 2"]; !ok {
		t.Error("expected Chapter 2 to download despite Chapter 1 failing")
	}
	for _, key := range store.deletes {
		if key == "prefix/task-1.mp3" {
			t.Error("delete should not be attempted after a failed download")
		}
	}
	if res.DeletionsAttempted() != 1 {
		t.Errorf("expected 1 deletion attempt, got %d", res.DeletionsAttempted())
	}
}

func TestRetrieveDeleteFailureKeepsFile(t *testing.T) {
	store := newFakeStore()
	store.put("test-bucket", "prefix/task-1.mp3", []byte("audio one"))
	store.deleteErr["prefix/task-1.mp3"] = errBoom
	dir := preparedDir(t)

	jobs := []*Job{completedJob("task-1", "Chapter 1", uriBase+"prefix/task-1.mp3")}
	res := NewRetriever(store, dir, testConfig()).Retrieve(context.Background(), jobs)

	if e := res.DeletionErrors["Chapter 1"]; e == nil || e.Kind != KindDeletion {
		t.Fatalf("expected deletion error, got %v", res.DeletionErrors)
	}
	if _, err := os.Stat(res.Files["Chapter 1"]); err != nil {
		t.Errorf("downloaded file should remain: %v", err)
	}
	if res.Deleted != 0 || res.DeletionsAttempted() != 1 {
		t.Errorf("expected 0 of 1 deletions, got %d of %d", res.Deleted, res.DeletionsAttempted())
	}
}

func TestRetrieveParseFailure(t *testing.T) {
	store := newFakeStore()
	dir := preparedDir(t)

	jobs := []*Job{completedJob("task-1", "Chapter 1", "https://s3.amazonaws.com")}
	res := NewRetriever(store, dir, testConfig()).Retrieve(context.Background(), jobs)

	e := res.DownloadErrors["Chapter 1"]
	if e == nil || e.Kind != KindParse {
		t.Fatalf("expected parse error, got %v", res.DownloadErrors)
	}
	if len(store.downloads) != 0 || len(store.deletes) != 0 {
		t.Errorf("expected no store calls, got %v %v", store.downloads, store.deletes)
	}
}

func TestRetrieveSkipsNonCompleted(t *testing.T) {
	store := newFakeStore()
	dir := preparedDir(t)

	jobs := []*Job{{ID: "task-1", Chapter: "Chapter 1", Status: StatusFailed}}
	res := NewRetriever(store, dir, testConfig()).Retrieve(context.Background(), jobs)

	if len(res.Files)+len(res.DownloadErrors) != 0 || len(store.downloads) != 0 {
		t.Errorf("expected failed job to be ignored, got %+v", res)
	}
}

func TestRetrieveFormatExtension(t *testing.T) {
	store := newFakeStore()
	store.put("test-bucket", "prefix/task-1.ogg", []byte("ogg"))
	dir := preparedDir(t)
	cfg := testConfig()
	cfg.Format = "ogg_vorbis"

	jobs := []*Job{completedJob("task-1", "Chapter 1", uriBase+"prefix/task-1.ogg")}
	res := NewRetriever(store, dir, cfg).Retrieve(context.Background(), jobs)

	if want := filepath.Join(dir.Path(), "Chapter 1.ogg"); res.Files["Chapter 1"] != want {
		t.Errorf("expected %s, got %s", want, res.Files["Chapter 1"])
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name         string
		uri          string
		wantKey      string
		wantFallback bool
		wantErr      bool
	}{
		{
			name:    "path style",
			uri:     "https://s3.ca-central-1.amazonaws.com/test-bucket/polly-output/book-chapters/abc.mp3",
			wantKey: "polly-output/book-chapters/abc.mp3",
		},
		{
			name:         "bucket missing from path",
			uri:          "https://test-bucket.s3.amazonaws.com/polly-output/abc.mp3",
			wantKey:      "polly-output/abc.mp3",
			wantFallback: true,
		},
		{name: "bucket only", uri: "https://s3.amazonaws.com/test-bucket/", wantErr: true},
		{name: "bucket without slash", uri: "https://s3.amazonaws.com/test-bucket", wantErr: true},
		{
			name:    "local store",
			uri:     "local:///test-bucket/prefix/abc.mp3",
			wantKey: "prefix/abc.mp3",
		},
		{name: "no path", uri: "https://s3.amazonaws.com", wantErr: true},
		{name: "root path", uri: "https://s3.amazonaws.com/", wantErr: true},
		{name: "malformed", uri: "://bad uri", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, fallback, err := ObjectKey(tt.uri, "test-bucket")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got key %q", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("expected key %q, got %q", tt.wantKey, key)
			}
			if fallback != tt.wantFallback {
				t.Errorf("expected fallback %v, got %v", tt.wantFallback, fallback)
			}
		})
	}
}
