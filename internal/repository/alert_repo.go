package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/models"
)

// AlertFilter narrows alert listings.
type AlertFilter struct {
	StudentID  string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// AlertRepository handles persistence for risk alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.RiskAlert) error
	List(ctx context.Context, filter AlertFilter) ([]models.RiskAlert, int64, error)
	MarkRead(ctx context.Context, id uint) (models.RiskAlert, error)
	FindByID(ctx context.Context, id uint) (models.RiskAlert, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository constructs a repository backed by GORM.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *models.RiskAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) List(ctx context.Context, filter AlertFilter) ([]models.RiskAlert, int64, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Model(&models.RiskAlert{})
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var alerts []models.RiskAlert
	if err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&alerts).Error; err != nil {
		return nil, 0, err
	}

	return alerts, total, nil
}

func (r *alertRepository) MarkRead(ctx context.Context, id uint) (models.RiskAlert, error) {
	var alert models.RiskAlert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return models.RiskAlert{}, err
	}

	if alert.Read {
		return alert, nil
	}

	alert.Read = true
	if err := r.db.WithContext(ctx).Save(&alert).Error; err != nil {
		return models.RiskAlert{}, err
	}

	return alert, nil
}

func (r *alertRepository) FindByID(ctx context.Context, id uint) (models.RiskAlert, error) {
	var alert models.RiskAlert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return models.RiskAlert{}, err
	}
	return alert, nil
}
