package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/models"
)

// StudentFilter defines filters for listing students.
type StudentFilter struct {
	Search    string
	RiskLevel string
	Sort      string
	Page      int
	PageSize  int
}

// RiskUpdate carries the derived fields written back after classification.
type RiskUpdate struct {
	StudentID string
	Level     string
	Score     int
	Reasons   []string
}

// PredictionUpdate carries the external prediction service output for a student.
type PredictionUpdate struct {
	StudentID string
	Level     string
	Reasons   []string
}

// StudentRepository exposes persistence helpers for student records and their sub-records.
type StudentRepository interface {
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	GetByID(ctx context.Context, id string) (models.Student, error)
	Upsert(ctx context.Context, id string, fields map[string]*string, create bool) (models.Student, bool, error)
	SaveRisk(ctx context.Context, updates []RiskUpdate) error
	SavePredictions(ctx context.Context, updates []PredictionUpdate) (int64, error)
	MergeRecord(ctx context.Context, studentID, kind string, payload map[string]*string) error
	ListRecords(ctx context.Context, studentID string) ([]models.StudentRecord, error)
}

var studentSorts = map[string]string{
	"id":      "id ASC",
	"name":    "first_name ASC, last_name ASC",
	"risk":    "risk_score DESC, id ASC",
	"-risk":   "risk_score ASC, id ASC",
	"updated": "updated_at DESC",
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(id) LIKE ?", like, like, like, like)
	}

	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", filter.RiskLevel)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := studentSorts[filter.Sort]
	if !ok {
		order = studentSorts["id"]
	}
	query = query.Order(order)

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Limit(filter.PageSize).Offset(offset)
	}

	var students []models.Student
	if err := query.Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&student).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

// Upsert merges fields into the student identified by id. Missing students are created
// only when create is true; otherwise gorm.ErrRecordNotFound is returned.
func (r *studentRepository) Upsert(ctx context.Context, id string, fields map[string]*string, create bool) (models.Student, bool, error) {
	var student models.Student
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", id).First(&student).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !create {
				return err
			}
			student = models.Student{ID: id}
			created = true
		case err != nil:
			return err
		}

		student.Merge(fields)

		if created {
			return tx.Create(&student).Error
		}
		return tx.Save(&student).Error
	})
	if err != nil {
		return models.Student{}, false, err
	}

	return student, created, nil
}

func (r *studentRepository) SaveRisk(ctx context.Context, updates []RiskUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			reasons := update.Reasons
			if reasons == nil {
				reasons = []string{}
			}
			err := tx.Model(&models.Student{}).
				Where("id = ?", update.StudentID).
				Updates(map[string]interface{}{
					"risk_level":      update.Level,
					"risk_score":      update.Score,
					"risk_reasons":    datatypes.NewJSONSlice(reasons),
					"risk_updated_at": now,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *studentRepository) SavePredictions(ctx context.Context, updates []PredictionUpdate) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			reasons := update.Reasons
			if reasons == nil {
				reasons = []string{}
			}
			result := tx.Model(&models.Student{}).
				Where("id = ?", update.StudentID).
				Updates(map[string]interface{}{
					"predicted_level":   update.Level,
					"predicted_reasons": datatypes.NewJSONSlice(reasons),
				})
			if result.Error != nil {
				return result.Error
			}
			affected += result.RowsAffected
		}
		return nil
	})
	return affected, err
}

func (r *studentRepository) MergeRecord(ctx context.Context, studentID, kind string, payload map[string]*string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.StudentRecord
		err := tx.Where("student_id = ? AND kind = ?", studentID, kind).First(&record).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}

		if isNew {
			record = models.StudentRecord{StudentID: studentID, Kind: kind}
		}
		if record.Payload == nil {
			record.Payload = datatypes.JSONMap{}
		}
		for key, value := range payload {
			if value == nil {
				record.Payload[key] = nil
				continue
			}
			record.Payload[key] = *value
		}

		if isNew {
			return tx.Create(&record).Error
		}
		return tx.Save(&record).Error
	})
}

func (r *studentRepository) ListRecords(ctx context.Context, studentID string) ([]models.StudentRecord, error) {
	var records []models.StudentRecord
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("kind ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
