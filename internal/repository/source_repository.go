package repository

import (
	"context"

	"readnext/internal/domain/entity"
)

// SourceRepository lists the tracked sources in registry order.
type SourceRepository interface {
	List(ctx context.Context) ([]entity.Source, error)
}
