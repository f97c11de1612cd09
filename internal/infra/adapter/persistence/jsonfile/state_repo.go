package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/repository"
)

// stateFile is the on-disk layout of the crawl state.
type stateFile struct {
	Version   int                    `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`
	Sources   map[string]sourceState `json:"sources"`
}

// sourceState mirrors entity.SourceState with explicit nulls for absent values.
type sourceState struct {
	LastChecked             time.Time          `json:"last_checked"`
	FeedURL                 *string            `json:"feed_url"`
	FeedMethod              string             `json:"feed_method,omitempty"`
	FeedFailures            int                `json:"feed_failures,omitempty"`
	LastSeenAt              *time.Time         `json:"last_seen_at"`
	SeenEntryIDs            []string           `json:"seen_entry_ids"`
	LastScreenshotPath      *string            `json:"last_screenshot_path"`
	LastScreenshotSignature *string            `json:"last_screenshot_signature"`
	LastScreenshotAt        *time.Time         `json:"last_screenshot_at"`
	PageTitle               string             `json:"page_title,omitempty"`
	LastStatus              string             `json:"last_status,omitempty"`
	NewEntries              []entity.FeedEntry `json:"new_entries"`
}

type StateRepo struct{ path string }

func NewStateRepo(path string) repository.StateRepository {
	return &StateRepo{path: path}
}

// Load reads the state file. A missing file yields an empty state.
func (repo *StateRepo) Load(ctx context.Context) (*entity.CrawlState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(repo.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entity.NewCrawlState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: Load: ReadFile: %w", entity.ErrStateIO, err)
	}

	var file stateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: Load: %s: %w", entity.ErrStateIO, repo.path, err)
	}
	if file.Version > entity.CrawlStateVersion {
		return nil, fmt.Errorf("%w: Load: unsupported state version %d", entity.ErrStateIO, file.Version)
	}

	state := entity.NewCrawlState()
	state.UpdatedAt = file.UpdatedAt
	for id, rec := range file.Sources {
		state.Sources[id] = rec.toEntity()
	}
	return state, nil
}

// Save writes the whole state atomically.
func (repo *StateRepo) Save(ctx context.Context, state *entity.CrawlState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := stateFile{
		Version:   entity.CrawlStateVersion,
		UpdatedAt: state.UpdatedAt.UTC(),
		Sources:   make(map[string]sourceState, len(state.Sources)),
	}
	for id, st := range state.Sources {
		file.Sources[id] = fromEntity(st)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: Save: Marshal: %w", entity.ErrStateIO, err)
	}
	if err := writeFileAtomic(repo.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: Save: %w", entity.ErrStateIO, err)
	}
	return nil
}

func fromEntity(st entity.SourceState) sourceState {
	rec := sourceState{
		LastChecked:             st.LastChecked.UTC(),
		FeedURL:                 optional(st.FeedURL),
		FeedMethod:              string(st.FeedMethod),
		FeedFailures:            st.FeedFailures,
		LastSeenAt:              utc(st.LastSeenAt),
		SeenEntryIDs:            st.SeenEntryIDs,
		LastScreenshotPath:      optional(st.LastScreenshotPath),
		LastScreenshotSignature: optional(st.LastScreenshotSignature),
		LastScreenshotAt:        utc(st.LastScreenshotAt),
		PageTitle:               st.PageTitle,
		LastStatus:              string(st.LastStatus),
		NewEntries:              st.NewEntries,
	}
	if rec.SeenEntryIDs == nil {
		rec.SeenEntryIDs = []string{}
	}
	if rec.NewEntries == nil {
		rec.NewEntries = []entity.FeedEntry{}
	}
	return rec
}

func (rec sourceState) toEntity() entity.SourceState {
	return entity.SourceState{
		LastChecked:             rec.LastChecked,
		FeedURL:                 deref(rec.FeedURL),
		FeedMethod:              entity.DiscoveryMethod(rec.FeedMethod),
		FeedFailures:            rec.FeedFailures,
		LastSeenAt:              rec.LastSeenAt,
		SeenEntryIDs:            rec.SeenEntryIDs,
		LastScreenshotPath:      deref(rec.LastScreenshotPath),
		LastScreenshotSignature: deref(rec.LastScreenshotSignature),
		LastScreenshotAt:        rec.LastScreenshotAt,
		PageTitle:               rec.PageTitle,
		LastStatus:              entity.Status(rec.LastStatus),
		NewEntries:              rec.NewEntries,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
