// Package outdir manages the local directory that receives chapter audio.
package outdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is the output directory for one run.
type Dir struct {
	path string
}

// New creates a Dir for path. If path is empty, it is derived from the
// input file by dropping the extension ("book.txt" -> "book").
func New(path, inputFile string) (*Dir, error) {
	if path == "" {
		if inputFile == "" {
			return nil, fmt.Errorf("output directory or input file is required")
		}
		path = strings.TrimSuffix(inputFile, filepath.Ext(inputFile))
		if path == "" || path == inputFile {
			path = inputFile + ".audio"
		}
	}

	d := &Dir{path: filepath.Clean(path)}
	if inputFile != "" && d.contains(inputFile) {
		return nil, fmt.Errorf("output directory %s would remove input file %s", d.path, inputFile)
	}
	return d, nil
}

// contains reports whether p is the directory itself or lies below it.
func (d *Dir) contains(p string) bool {
	absDir, err1 := filepath.Abs(d.path)
	absP, err2 := filepath.Abs(p)
	if err1 != nil || err2 != nil {
		return filepath.Clean(p) == d.path
	}
	rel, err := filepath.Rel(absDir, absP)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Exists returns true if the directory exists.
func (d *Dir) Exists() bool {
	info, err := os.Stat(d.path)
	return err == nil && info.IsDir()
}

// Prepare removes anything at the directory path and recreates it empty.
func (d *Dir) Prepare() error {
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("failed to remove existing output directory %s: %w", d.path, err)
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", d.path, err)
	}
	return nil
}

// ChapterAudioPath returns the file path for a chapter's audio.
func (d *Dir) ChapterAudioPath(title, format string) string {
	return filepath.Join(d.path, SafeName(title)+"."+Extension(format))
}

// Extension maps an audio output format to a file extension.
func Extension(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return "mp3"
	case "ogg_vorbis":
		return "ogg"
	case "json":
		return "marks.json"
	default:
		return f
	}
}

var unsafeChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_", "\x00", "",
)

// SafeName makes a chapter title usable as a file name.
func SafeName(title string) string {
	name := strings.TrimSpace(unsafeChars.Replace(title))
	name = strings.Trim(name, ".")
	if name == "" {
		return "chapter"
	}
	return name
}
