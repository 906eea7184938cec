package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func strPtr(value string) *string {
	return &value
}

// fakeStudentRepo is an in-memory StudentRepository safe for concurrent use.
type fakeStudentRepo struct {
	mu        sync.Mutex
	students  map[string]models.Student
	records   map[string]map[string]datatypes.JSONMap
	listCalls int
	failSave  error
}

func newFakeStudentRepo(students ...models.Student) *fakeStudentRepo {
	repo := &fakeStudentRepo{
		students: make(map[string]models.Student),
		records:  make(map[string]map[string]datatypes.JSONMap),
	}
	for _, student := range students {
		repo.students[student.ID] = student
	}
	return repo
}

func (f *fakeStudentRepo) List(ctx context.Context, filter repository.StudentFilter) ([]models.Student, int64, error) {
	all, _ := f.ListAll(ctx)
	out := make([]models.Student, 0)
	for _, student := range all {
		if filter.RiskLevel != "" && student.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(student.FullName()), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, student)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStudentRepo) ListAll(ctx context.Context) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	out := make([]models.Student, 0, len(f.students))
	for _, student := range f.students {
		out = append(out, student)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStudentRepo) GetByID(ctx context.Context, id string) (models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	student, ok := f.students[id]
	if !ok {
		return models.Student{}, gorm.ErrRecordNotFound
	}
	return student, nil
}

func (f *fakeStudentRepo) Upsert(ctx context.Context, id string, fields map[string]*string, create bool) (models.Student, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	student, ok := f.students[id]
	if !ok {
		if !create {
			return models.Student{}, false, gorm.ErrRecordNotFound
		}
		student = models.Student{ID: id}
	}
	student.Merge(fields)
	f.students[id] = student
	return student, !ok, nil
}

func (f *fakeStudentRepo) SaveRisk(ctx context.Context, updates []repository.RiskUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave != nil {
		return f.failSave
	}
	for _, update := range updates {
		student, ok := f.students[update.StudentID]
		if !ok {
			continue
		}
		student.RiskLevel = update.Level
		student.RiskScore = update.Score
		student.RiskReasons = datatypes.NewJSONSlice(update.Reasons)
		f.students[update.StudentID] = student
	}
	return nil
}

func (f *fakeStudentRepo) SavePredictions(ctx context.Context, updates []repository.PredictionUpdate) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stored int64
	for _, update := range updates {
		student, ok := f.students[update.StudentID]
		if !ok {
			continue
		}
		student.PredictedLevel = update.Level
		student.PredictedReasons = datatypes.NewJSONSlice(update.Reasons)
		f.students[update.StudentID] = student
		stored++
	}
	return stored, nil
}

func (f *fakeStudentRepo) MergeRecord(ctx context.Context, studentID, kind string, payload map[string]*string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[studentID] == nil {
		f.records[studentID] = make(map[string]datatypes.JSONMap)
	}
	record := f.records[studentID][kind]
	if record == nil {
		record = datatypes.JSONMap{}
	}
	for key, value := range payload {
		if value == nil {
			record[key] = nil
			continue
		}
		record[key] = *value
	}
	f.records[studentID][kind] = record
	return nil
}

func (f *fakeStudentRepo) ListRecords(ctx context.Context, studentID string) ([]models.StudentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.StudentRecord, 0)
	for kind, payload := range f.records[studentID] {
		out = append(out, models.StudentRecord{StudentID: studentID, Kind: kind, Payload: payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (f *fakeStudentRepo) get(t *testing.T, id string) models.Student {
	t.Helper()
	student, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	return student
}

type reclassifierStub struct {
	calls int
	err   error
}

func (r *reclassifierStub) Reclassify(ctx context.Context) (dto.ReclassifyResult, error) {
	r.calls++
	if r.err != nil {
		return dto.ReclassifyResult{}, r.err
	}
	return dto.ReclassifyResult{Total: 1}, nil
}

var errBoom = errors.New("boom")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.StudentRecord{}, &models.RiskAlert{}))
	return db
}

func newStudent(id, first, debarRisk, absences string, scores ...string) models.Student {
	s := models.Student{ID: id, FirstName: strPtr(first)}
	if debarRisk != "" {
		s.DebarRisk = strPtr(debarRisk)
	}
	if absences != "" {
		s.AbsenceDays = strPtr(absences)
	}
	for i, score := range scores {
		switch i {
		case 0:
			s.MathScore = strPtr(score)
		case 1:
			s.PhysicsScore = strPtr(score)
		case 2:
			s.ChemistryScore = strPtr(score)
		}
	}
	return s
}
