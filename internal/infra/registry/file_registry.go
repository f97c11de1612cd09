// Package registry loads the list of tracked sources from a plain-text file.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"readnext/internal/domain/entity"

	"github.com/samber/lo"
)

const commentMarker = "#"

// FileRegistry reads sources from a links file.
//
// Accepted layout:
//
//	# comment
//	https://a.example/                 <- bare URL
//	https://b.example/ Bob's notes     <- URL plus label
//
//	Carol                              <- label for the URLs below it
//	https://carol.example/
//	https://medium.com/@carol
//
// A blank line ends a label group.
type FileRegistry struct {
	path string
}

// NewFileRegistry creates a registry backed by the file at path.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// List parses the registry file into sources in file order.
// Malformed lines are skipped with a warning; duplicate IDs keep the first occurrence.
// It fails with entity.ErrRegistryUnreadable only when the file cannot be read as text.
func (r *FileRegistry) List(ctx context.Context) ([]entity.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRegistryUnreadable, err)
	}

	// #nosec G304 -- path comes from the CLI flag or config file
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrRegistryUnreadable, err)
	}

	return Parse(data)
}

// Parse parses registry content. See FileRegistry for the accepted layout.
func Parse(data []byte) ([]entity.Source, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", entity.ErrRegistryUnreadable)
	}

	logger := slog.Default()
	var sources []entity.Source
	group := ""

	for i, raw := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			group = ""
			continue
		case strings.HasPrefix(line, commentMarker):
			continue
		}

		fields := strings.Fields(line)
		first := fields[0]

		if !strings.Contains(first, "://") {
			group = line
			continue
		}

		label := strings.TrimSpace(strings.TrimPrefix(line, first))
		if label == "" {
			label = group
		}

		src, err := entity.NewSource(first, label)
		if err != nil {
			logger.Warn("skipping malformed registry line",
				slog.Int("line", lineNo),
				slog.String("content", line),
				slog.Any("error", err))
			continue
		}
		sources = append(sources, src)
	}

	unique := lo.UniqBy(sources, func(s entity.Source) string { return s.ID })
	if dup := len(sources) - len(unique); dup > 0 {
		logger.Info("dropped duplicate registry entries", slog.Int("duplicates", dup))
	}

	return unique, nil
}
