package repository

import (
	"context"
	"errors"

	"github.com/tovald/pageflow/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrWebsiteNotFound signals that the referenced website is not registered.
	ErrWebsiteNotFound = errors.New("website not found")
)

// WebsiteRepository defines the read-only access the ingestion core needs.
type WebsiteRepository interface {
	GetByID(ctx context.Context, id string) (*model.Website, error)
	ListIDs(ctx context.Context) ([]string, error)
}

type websiteRepository struct {
	db *gorm.DB
}

// NewWebsiteRepository returns a GORM-backed WebsiteRepository.
func NewWebsiteRepository(db *gorm.DB) WebsiteRepository {
	return &websiteRepository{db: db}
}

func (r *websiteRepository) GetByID(ctx context.Context, id string) (*model.Website, error) {
	var website model.Website
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&website).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebsiteNotFound
		}
		return nil, err
	}
	return &website, nil
}

func (r *websiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Website{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
