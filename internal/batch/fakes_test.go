package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jackzampolin/chaptercast/internal/storage"
	"github.com/jackzampolin/chaptercast/internal/synth"
)

// fakeService hands out task ids in submit order and replays a scripted
// sequence of status responses per id. Once the script is exhausted the
// last response repeats.
type fakeService struct {
	mu sync.Mutex

	submitErr map[string]error // keyed by chapter title found in the markup
	scripts   map[string][]statusStep
	uriFor    func(id string) string

	submitted []synth.SubmitRequest
	ids       []string
	calls     map[string]int
}

type statusStep struct {
	state  synth.State
	raw    string
	uri    string
	reason string
	err    error
	noURI  bool
}

func newFakeService() *fakeService {
	return &fakeService{
		submitErr: make(map[string]error),
		scripts:   make(map[string][]statusStep),
		calls:     make(map[string]int),
		uriFor: func(id string) string {
			return "https://s3.ca-central-1.amazonaws.com/test-bucket/prefix/" + id + ".mp3"
		},
	}
}

func (f *fakeService) Name() string { return "fake" }

func (f *fakeService) Submit(_ context.Context, req synth.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	for title, err := range f.submitErr {
		if containsTitle(req.Text, title) {
			return "", err
		}
	}
	id := fmt.Sprintf("task-%d", len(f.ids)+1)
	f.ids = append(f.ids, id)
	return id, nil
}

func (f *fakeService) Status(_ context.Context, id string) (*synth.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++

	script, ok := f.scripts[id]
	if !ok || len(script) == 0 {
		return &synth.Task{ID: id, State: synth.StateCompleted, OutputURI: f.uriFor(id)}, nil
	}
	n := f.calls[id] - 1
	if n >= len(script) {
		n = len(script) - 1
	}
	step := script[n]
	if step.err != nil {
		return nil, step.err
	}
	task := &synth.Task{ID: id, State: step.state, RawState: step.raw, Reason: step.reason, OutputURI: step.uri}
	if step.state == synth.StateCompleted && step.uri == "" && !step.noURI {
		task.OutputURI = f.uriFor(id)
	}
	return task, nil
}

func (f *fakeService) statusCalls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func containsTitle(markup, title string) bool {
	return title != "" && strings.Contains(markup, "<speak>"+title+"<break")
}

// fakeStore serves object bodies from memory.
type fakeStore struct {
	mu sync.Mutex

	objects     map[string][]byte // bucket/key -> body
	downloadErr map[string]error  // key -> error
	deleteErr   map[string]error  // key -> error

	downloads []string
	deletes   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:     make(map[string][]byte),
		downloadErr: make(map[string]error),
		deleteErr:   make(map[string]error),
	}
}

func (s *fakeStore) put(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = body
}

func (s *fakeStore) Download(_ context.Context, bucket, key, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, key)
	if err, ok := s.downloadErr[key]; ok {
		return err
	}
	body, ok := s.objects[bucket+"/"+key]
	if !ok {
		return fmt.Errorf("download %s/%s: %w", bucket, key, storage.ErrNotFound)
	}
	return os.WriteFile(localPath, body, 0o644)
}

func (s *fakeStore) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	if err, ok := s.deleteErr[key]; ok {
		return err
	}
	delete(s.objects, bucket+"/"+key)
	return nil
}

var errBoom = errors.New("boom")

func transientErr(msg string) error {
	return fmt.Errorf("%s: %w", msg, synth.ErrTransient)
}
