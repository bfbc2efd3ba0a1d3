package repository

import (
	"context"
	"errors"
	"time"

	"mentorhub-backend/internal/notification/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DedupRecordModel is the relational row of a dedup record
type DedupRecordModel struct {
	ID          string    `gorm:"primaryKey"`
	RecipientID string    `gorm:"index;not null"`
	Kind        string    `gorm:"index;not null"`
	Subject     string    `gorm:"not null;default:''"`
	Period      string    `gorm:"not null"`
	SentAt      time.Time `gorm:"not null"`
}

func (DedupRecordModel) TableName() string {
	return DedupCollection
}

// gormDedupRepository implements DedupRepository using GORM
type gormDedupRepository struct {
	db *gorm.DB
}

// NewGormDedupRepository creates a Postgres-backed DedupRepository
func NewGormDedupRepository(db *gorm.DB) (DedupRepository, error) {
	if err := db.AutoMigrate(&DedupRecordModel{}); err != nil {
		return nil, err
	}
	return &gormDedupRepository{db: db}, nil
}

func (r *gormDedupRepository) ShouldSend(ctx context.Context, recipientID string, key domain.DedupKey, force bool) (bool, error) {
	if force {
		return true, nil
	}
	var record DedupRecordModel
	err := r.db.WithContext(ctx).Where("id = ?", key.RecordID(recipientID)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func (r *gormDedupRepository) RecordSent(ctx context.Context, recipientID string, key domain.DedupKey, sentAt time.Time) error {
	record := &DedupRecordModel{
		ID:          key.RecordID(recipientID),
		RecipientID: recipientID,
		Kind:        string(key.Kind),
		Subject:     key.Subject,
		Period:      key.Period,
		SentAt:      sentAt,
	}

	// Write once: INSERT ... ON CONFLICT (id) DO NOTHING
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(record).Error
}
