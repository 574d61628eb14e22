package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tovald/pageflow/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRepository persists sessions and identify data. Session ids are
// derived deterministically upstream, so concurrent first-sight requests may
// race to create the same row; CreateIfAbsent must treat that as success.
type SessionRepository interface {
	CreateIfAbsent(ctx context.Context, session *model.Session) error
	SaveData(ctx context.Context, sessionID, distinctID string, data map[string]any) error
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns a GORM-backed SessionRepository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) CreateIfAbsent(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(session).Error
}

func (r *sessionRepository) SaveData(ctx context.Context, sessionID, distinctID string, data map[string]any) error {
	now := time.Now().UTC()

	records := make([]model.SessionDataRecord, 0, len(data))
	for key, value := range data {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal session data %q: %w", key, err)
		}
		records = append(records, model.SessionDataRecord{
			SessionID:  sessionID,
			DataKey:    key,
			DataValue:  string(raw),
			DistinctID: distinctID,
			CreatedAt:  now,
		})
	}

	if len(records) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "data_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data_value", "distinct_id"}),
		}).
		Create(&records).Error
}
