package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/risk"
	"github.com/noah-isme/gema-ews-api/pkg/ai"
)

type advisorStub struct {
	last  ai.BriefInput
	brief ai.Brief
	err   error
}

func (a *advisorStub) Brief(_ context.Context, input ai.BriefInput) (ai.Brief, error) {
	a.last = input
	return a.brief, a.err
}

func TestBriefServiceDraftsFromLiveAssessment(t *testing.T) {
	repo := newFakeStudentRepo(newStudent("S1", "Asha", "Admin Debar", "100", "80", "40", "60"))
	students, _ := newStudentFixture(t, repo)
	advisor := &advisorStub{brief: ai.Brief{
		Summary: "Attendance has <b>collapsed</b>.",
		Actions: []string{"Call guardian", "<script></script>"},
		Urgency: "high",
		Model:   "gpt-4o-mini",
	}}

	brief, err := NewBriefService(students, advisor, testLogger()).Brief(context.Background(), "S1")
	require.NoError(t, err)

	require.Equal(t, "S1", advisor.last.StudentID)
	require.Equal(t, string(risk.TierHigh), advisor.last.Tier)
	require.Equal(t, 0.0, advisor.last.AttendancePercent)
	require.Equal(t, 60.0, advisor.last.AverageScore)

	require.Equal(t, risk.TierHigh, brief.Tier)
	require.Equal(t, "Attendance has collapsed.", brief.Summary)
	require.Equal(t, []string{"Call guardian"}, brief.Actions)
	require.False(t, brief.GeneratedAt.IsZero())
}

func TestBriefServiceErrors(t *testing.T) {
	students, _ := newStudentFixture(t, newFakeStudentRepo())

	_, err := NewBriefService(students, nil, testLogger()).Brief(context.Background(), "S1")
	require.ErrorIs(t, err, ErrAdvisorUnavailable)

	_, err = NewBriefService(students, &advisorStub{}, testLogger()).Brief(context.Background(), "S404")
	require.ErrorIs(t, err, ErrStudentNotFound)

	repo := newFakeStudentRepo(newStudent("S1", "Asha", "", ""))
	students, _ = newStudentFixture(t, repo)
	_, err = NewBriefService(students, &advisorStub{err: errBoom}, testLogger()).Brief(context.Background(), "S1")
	require.ErrorIs(t, err, errBoom)
}
