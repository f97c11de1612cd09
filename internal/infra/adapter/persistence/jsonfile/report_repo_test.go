package jsonfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/infra/adapter/persistence/jsonfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRepo_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	repo := jsonfile.NewReportRepo(path)

	report := &entity.RunReport{
		RunID:     "3b7d2c4e-0000-4000-8000-000000000000",
		Cutoff:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		StartedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Sources: []entity.SourceReport{
			{SourceID: "a.example", Status: entity.StatusNewItems, Path: entity.PathFeed},
		},
		Summary:         map[entity.Status]int{entity.StatusNewItems: 1},
		TotalNewEntries: 2,
	}
	require.NoError(t, repo.Save(context.Background(), report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got entity.RunReport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, 1, got.Summary[entity.StatusNewItems])
	assert.Equal(t, entity.StatusNewItems, got.Sources[0].Status)
}
