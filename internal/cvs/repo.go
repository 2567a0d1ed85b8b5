package cvs

import (
	"context"
	"time"
)

// CVRepo defines persistence operations for CVs.
type CVRepo interface {
	Create(ctx context.Context, cv CV) error
	GetByURLId(ctx context.Context, urlID string) (CV, error)
	GetByCustomURLName(ctx context.Context, name string) (CV, error)
	Update(ctx context.Context, cv CV) error
	IncrementView(ctx context.Context, urlID string, at time.Time) error
	RecordSectionInteraction(ctx context.Context, urlID, sectionID, sectionTitle string, at time.Time) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]CV, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, urlID string) error
}
