// Package chapters splits book text into titled chapters and wraps each
// chapter in SSML for synthesis.
package chapters

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

// DefaultMarker is the chapter marker word used when none is configured.
const DefaultMarker = "Глава"

var (
	// ErrNoChapters is returned when the text contains no chapter markers.
	ErrNoChapters = errors.New("no chapters found")
	// ErrEmptyText is returned when the text is empty or whitespace only.
	ErrEmptyText = errors.New("input text is empty")
	// ErrDuplicateTitle is returned under DuplicateReject when a title repeats.
	ErrDuplicateTitle = errors.New("duplicate chapter title")
)

// DuplicatePolicy decides what happens when two markers produce the same title.
type DuplicatePolicy string

const (
	// DuplicateSuffix renames later duplicates "{title} (2)", "{title} (3)", ...
	DuplicateSuffix DuplicatePolicy = "suffix"
	// DuplicateReject fails the split.
	DuplicateReject DuplicatePolicy = "reject"
)

// Chapter is one titled section of the book.
type Chapter struct {
	Title  string
	Body   string
	Markup string
}

// Options configure a Splitter.
type Options struct {
	// Marker is the word that starts a chapter, followed by whitespace and
	// a number (e.g. "Chapter" matches "Chapter 12").
	Marker     string
	Duplicates DuplicatePolicy
	Logger     *slog.Logger
}

// Splitter splits text on a chapter marker pattern.
type Splitter struct {
	marker     string
	pattern    *regexp.Regexp
	duplicates DuplicatePolicy
	logger     *slog.Logger
}

// NewSplitter compiles the marker pattern.
func NewSplitter(opts Options) (*Splitter, error) {
	marker := strings.TrimSpace(opts.Marker)
	if marker == "" {
		marker = DefaultMarker
	}
	switch opts.Duplicates {
	case "":
		opts.Duplicates = DuplicateSuffix
	case DuplicateSuffix, DuplicateReject:
	default:
		return nil, fmt.Errorf("unknown duplicate policy %q", opts.Duplicates)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pattern, err := regexp.Compile(regexp.QuoteMeta(marker) + `[\s\p{Zs}]+\d+`)
	if err != nil {
		return nil, fmt.Errorf("invalid chapter marker %q: %w", marker, err)
	}

	return &Splitter{
		marker:     marker,
		pattern:    pattern,
		duplicates: opts.Duplicates,
		logger:     opts.Logger,
	}, nil
}

// Marker returns the configured marker word.
func (s *Splitter) Marker() string {
	return s.marker
}

// Split returns chapters in the order their markers appear. Text before
// the first marker is discarded.
func (s *Splitter) Split(text string) ([]Chapter, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	matches := s.pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w matching %q", ErrNoChapters, s.marker+" <number>")
	}

	if preface := strings.TrimSpace(text[:matches[0][0]]); preface != "" {
		s.logger.Debug("discarding text before first chapter marker", "chars", len([]rune(preface)))
	}

	chapters := make([]Chapter, 0, len(matches))
	seen := make(map[string]int, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		title := normalizeTitle(text[m[0]:m[1]])
		body := strings.TrimSpace(text[m[1]:end])

		if n := seen[title]; n > 0 {
			if s.duplicates == DuplicateReject {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
			}
			renamed := uniqueTitle(title, n+1, seen)
			s.logger.Warn("duplicate chapter title renamed", "title", title, "renamed", renamed)
			seen[title] = n + 1
			title = renamed
		}
		seen[title]++

		if body == "" {
			s.logger.Debug("chapter has empty body", "title", title)
		}

		chapters = append(chapters, Chapter{
			Title:  title,
			Body:   body,
			Markup: Markup(title, body),
		})
	}

	return chapters, nil
}

// uniqueTitle returns "{title} ({n})", bumping n past titles already taken.
func uniqueTitle(title string, n int, seen map[string]int) string {
	for {
		candidate := fmt.Sprintf("%s (%d)", title, n)
		if seen[candidate] == 0 {
			return candidate
		}
		n++
	}
}

// normalizeTitle trims the marker match and collapses inner whitespace.
func normalizeTitle(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
