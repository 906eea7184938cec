package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/models"
)

func strPtr(value string) *string {
	return &value
}

func TestStudentRepositoryUpsertMergesInsteadOfReplacing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	student, created, err := repo.Upsert(ctx, "S1", map[string]*string{
		"first_name": strPtr("Asha"),
		"math_score": strPtr("80"),
		"section":    strPtr("B"),
	}, true)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Asha", models.Deref(student.FirstName))

	student, created, err = repo.Upsert(ctx, "S1", map[string]*string{
		"math_score":   strPtr("60"),
		"absence_days": nil,
	}, true)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Asha", models.Deref(student.FirstName))
	require.Equal(t, "60", models.Deref(student.MathScore))
	require.Nil(t, student.AbsenceDays)
	require.NotNil(t, student.PreviousAvgScore)
	require.InDelta(t, 80.0/3.0, *student.PreviousAvgScore, 0.001)

	stored, err := repo.GetByID(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, "B", stored.Attribute("section"))
}

func TestStudentRepositoryUpsertWithoutCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)

	_, _, err := repo.Upsert(context.Background(), "missing", map[string]*string{"fee_pending": strPtr("10")}, false)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStudentRepositoryListFiltersAndPaginates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	for i, name := range []string{"Alice", "Bob", "Carla"} {
		_, _, err := repo.Upsert(ctx, fmt.Sprintf("S%d", i+1), map[string]*string{"first_name": strPtr(name)}, true)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SaveRisk(ctx, []RiskUpdate{
		{StudentID: "S1", Level: "High Risk", Score: 80, Reasons: []string{"Admin debar"}},
		{StudentID: "S2", Level: "Low Risk", Score: 10},
		{StudentID: "S3", Level: "High Risk", Score: 90},
	}))

	students, total, err := repo.List(ctx, StudentFilter{RiskLevel: "High Risk", Sort: "risk", PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, students, 1)
	require.Equal(t, "S3", students[0].ID)

	students, total, err = repo.List(ctx, StudentFilter{Search: "ALI"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "S1", students[0].ID)
	require.Equal(t, []string{"Admin debar"}, []string(students[0].RiskReasons))
}

func TestStudentRepositoryMergeRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.MergeRecord(ctx, "S1", models.RecordKindFees, map[string]*string{"fee_pending": strPtr("200"), "term": strPtr("1")}))
	require.NoError(t, repo.MergeRecord(ctx, "S1", models.RecordKindFees, map[string]*string{"fee_pending": strPtr("0")}))
	require.NoError(t, repo.MergeRecord(ctx, "S1", models.RecordKindAttendance, map[string]*string{"absence_days": nil}))

	records, err := repo.ListRecords(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, models.RecordKindAttendance, records[0].Kind)
	require.Equal(t, models.RecordKindFees, records[1].Kind)
	require.Equal(t, "0", records[1].Payload["fee_pending"])
	require.Equal(t, "1", records[1].Payload["term"])
}

func TestStudentRepositorySavePredictions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	_, _, err := repo.Upsert(ctx, "S1", map[string]*string{"first_name": strPtr("Asha")}, true)
	require.NoError(t, err)

	affected, err := repo.SavePredictions(ctx, []PredictionUpdate{
		{StudentID: "S1", Level: "High Risk", Reasons: []string{"Low attendance"}},
		{StudentID: "ghost", Level: "Low Risk"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	stored, err := repo.GetByID(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, "High Risk", stored.PredictedLevel)
}

func TestAlertRepositoryListAndMarkRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db)
	ctx := context.Background()

	first := models.RiskAlert{StudentID: "S1", Type: models.AlertTypeEscalation, ToLevel: "High Risk"}
	second := models.RiskAlert{StudentID: "S2", Type: models.AlertTypeEscalation, ToLevel: "High Risk"}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	alert, err := repo.MarkRead(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, alert.Read)

	alerts, total, err := repo.List(ctx, AlertFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "S2", alerts[0].StudentID)

	_, err = repo.MarkRead(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.StudentRecord{}, &models.RiskAlert{}))
	return db
}
