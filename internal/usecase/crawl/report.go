package crawl

import (
	"time"

	"github.com/samber/lo"

	"readnext/internal/domain/entity"
)

var allStatuses = []entity.Status{
	entity.StatusNewItems,
	entity.StatusUnchanged,
	entity.StatusPossiblyChanged,
	entity.StatusError,
	entity.StatusSkipped,
}

// buildReport assembles the run report. sources keeps registry order.
func buildReport(runID string, cutoff, startedAt, finishedAt time.Time, screenshots bool, sources []entity.SourceReport) *entity.RunReport {
	summary := make(map[entity.Status]int, len(allStatuses))
	for _, st := range allStatuses {
		summary[st] = 0
	}
	for st, n := range lo.CountValuesBy(sources, func(r entity.SourceReport) entity.Status { return r.Status }) {
		summary[st] += n
	}

	return &entity.RunReport{
		RunID:              runID,
		Cutoff:             cutoff,
		StartedAt:          startedAt,
		FinishedAt:         finishedAt,
		ScreenshotsEnabled: screenshots,
		Sources:            sources,
		Summary:            summary,
		TotalNewEntries: lo.SumBy(sources, func(r entity.SourceReport) int {
			return len(r.NewEntries)
		}),
	}
}

func countDegraded(sources []entity.SourceReport) int {
	return lo.CountBy(sources, func(r entity.SourceReport) bool { return r.Degraded })
}
