package repository

import (
	"context"

	"github.com/tovald/pageflow/internal/app/model"
	"gorm.io/gorm"
)

// EventRepository writes hit records. Events are immutable; there is no
// update or delete surface.
type EventRepository interface {
	Create(ctx context.Context, event *model.WebsiteEvent) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository returns a GORM-backed EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *model.WebsiteEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
