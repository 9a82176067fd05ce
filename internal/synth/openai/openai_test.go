package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/chaptercast/internal/storage/localfs"
	"github.com/jackzampolin/chaptercast/internal/synth"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *localfs.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := localfs.New(t.TempDir())
	svc, err := New(Config{
		APIKey:  "test-key",
		Model:   "tts-1",
		Voice:   "nova",
		BaseURL: server.URL,
		Store:   store,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, store
}

func TestNew_RequiresStore(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestSubmit_StagesAudio(t *testing.T) {
	var payload map[string]any
	svc, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	})

	id, err := svc.Submit(context.Background(), synth.SubmitRequest{
		Text:      `<speak>Chapter 1<break strength="strong"/>Tom &amp; Jerry</speak>`,
		TextType:  synth.TextTypeSSML,
		Format:    "mp3",
		Bucket:    "books",
		KeyPrefix: "out/",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got, _ := payload["input"].(string); got != "Chapter 1\n\nTom & Jerry" {
		t.Fatalf("unexpected input %q", got)
	}
	if got, _ := payload["voice"].(string); got != "nova" {
		t.Fatalf("expected configured voice, got %q", got)
	}

	task, err := svc.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if task.State != synth.StateCompleted {
		t.Fatalf("expected completed, got %s", task.State)
	}

	u, err := url.Parse(task.OutputURI)
	if err != nil {
		t.Fatalf("parse output uri: %v", err)
	}
	if u.Path != "/books/out/"+id+".mp3" {
		t.Fatalf("unexpected output path %q", u.Path)
	}
	data, err := os.ReadFile(filepath.Join(store.Root(), "books", "out", id+".mp3"))
	if err != nil {
		t.Fatalf("staged file missing: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("unexpected staged content %q", data)
	}
}

func TestSubmit_APIErrorFailsTask(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"input too long","type":"invalid_request_error","param":"input","code":null}}`))
	})

	id, err := svc.Submit(context.Background(), synth.SubmitRequest{
		Text:   "hello",
		Format: "mp3",
		Bucket: "books",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	task, err := svc.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if task.State != synth.StateFailed {
		t.Fatalf("expected failed task, got %s", task.State)
	}
	if !strings.Contains(task.Reason, "input too long") {
		t.Fatalf("expected API message in reason, got %q", task.Reason)
	}
}

func TestSubmit_Validation(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	if _, err := svc.Submit(context.Background(), synth.SubmitRequest{Text: "<speak></speak>", TextType: synth.TextTypeSSML, Bucket: "b"}); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := svc.Submit(context.Background(), synth.SubmitRequest{Text: "hi"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestStatus_UnknownTask(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := svc.Status(context.Background(), "missing")
	if err == nil || synth.IsTransient(err) {
		t.Fatalf("expected final error for unknown task, got %v", err)
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText(`<speak>Глава 2<break strength="strong"/>&lt;quoted&gt; text</speak>`)
	if got != "Глава 2\n\n<quoted> text" {
		t.Fatalf("PlainText() = %q", got)
	}
}

func TestNormalizeFormat(t *testing.T) {
	cases := map[string]string{
		"":           "mp3",
		"mp3":        "mp3",
		"ogg_vorbis": "opus",
		"FLAC":       "flac",
		"pcm":        "pcm",
		"unknown":    "mp3",
	}
	for in, want := range cases {
		if got := resultExtension(normalizeFormat(in)); got != want {
			t.Errorf("format %q -> %q, want %q", in, got, want)
		}
	}
}
