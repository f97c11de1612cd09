package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"

	"readnext/internal/domain/entity"
	"readnext/internal/repository"
)

type ReportRepo struct{ path string }

func NewReportRepo(path string) repository.ReportRepository {
	return &ReportRepo{path: path}
}

// Save overwrites the report of the previous run.
func (repo *ReportRepo) Save(ctx context.Context, report *entity.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: Save report: Marshal: %w", entity.ErrStateIO, err)
	}
	if err := writeFileAtomic(repo.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: Save report: %w", entity.ErrStateIO, err)
	}
	return nil
}
