package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/risk"
	"github.com/noah-isme/gema-ews-api/internal/service"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return listener.Addr().String(), shutdown
}

type cohortServiceStub struct {
	response dto.DashboardResponse
	err      error
}

func (s *cohortServiceStub) Dashboard(context.Context) (dto.DashboardResponse, error) {
	return s.response, s.err
}

func (s *cohortServiceStub) Invalidate(context.Context) {}

func (s *cohortServiceStub) Assess(_ []models.Student, _ risk.ThresholdConfig) []risk.Assessment {
	return nil
}

func (s *cohortServiceStub) Mode() risk.ClassificationMode { return risk.ModeExternal }

func (s *cohortServiceStub) Normalizer() risk.Normalizer { return risk.Normalizer{} }

type studentServiceStub struct {
	lastList dto.StudentListRequest
	list     dto.StudentListResponse
	profile  dto.StudentProfileResponse
	err      error
}

func (s *studentServiceStub) List(_ context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	s.lastList = req
	return s.list, s.err
}

func (s *studentServiceStub) Get(_ context.Context, id string) (dto.StudentProfileResponse, error) {
	if s.err != nil {
		return dto.StudentProfileResponse{}, s.err
	}
	profile := s.profile
	profile.ID = id
	return profile, nil
}

func (s *studentServiceStub) Reclassify(context.Context) (dto.ReclassifyResult, error) {
	return dto.ReclassifyResult{}, s.err
}

type thresholdServiceStub struct {
	current    dto.ThresholdResponse
	simulation risk.Simulation
	apply      dto.ThresholdApplyResponse
	lastPatch  risk.ThresholdPatch
	resets     int
	err        error
}

func (s *thresholdServiceStub) Current() dto.ThresholdResponse { return s.current }

func (s *thresholdServiceStub) Simulate(_ context.Context, patch risk.ThresholdPatch) (risk.Simulation, error) {
	s.lastPatch = patch
	return s.simulation, s.err
}

func (s *thresholdServiceStub) Apply(_ context.Context, patch risk.ThresholdPatch) (dto.ThresholdApplyResponse, error) {
	s.lastPatch = patch
	return s.apply, s.err
}

func (s *thresholdServiceStub) Reset(context.Context) (dto.ThresholdApplyResponse, error) {
	s.resets++
	return s.apply, s.err
}

type ingestServiceStub struct {
	lastKind string
	lastName string
	result   dto.IngestResult
	err      error
}

func (s *ingestServiceStub) Ingest(_ context.Context, kind, filename string, _ io.Reader) (dto.IngestResult, error) {
	s.lastKind = kind
	s.lastName = filename
	return s.result, s.err
}

func (s *ingestServiceStub) IngestUpload(_ context.Context, kind string, file *multipart.FileHeader) (dto.IngestResult, error) {
	s.lastKind = kind
	if file != nil {
		s.lastName = file.Filename
	}
	return s.result, s.err
}

type predictionServiceStub struct {
	response dto.PredictionRunResponse
	err      error
}

func (s *predictionServiceStub) RunAll(context.Context) (dto.PredictionRunResponse, error) {
	return s.response, s.err
}

type alertServiceStub struct {
	mu       sync.Mutex
	lastList dto.AlertListRequest
	list     dto.AlertListResponse
	marked   dto.AlertResponse
	err      error
	stream   chan dto.AlertResponse
	closed   chan struct{}
}

func newAlertServiceStub() *alertServiceStub {
	return &alertServiceStub{
		stream: make(chan dto.AlertResponse, 4),
		closed: make(chan struct{}),
	}
}

func (s *alertServiceStub) RaiseEscalations(context.Context, []service.TierChange) ([]dto.AlertResponse, error) {
	return nil, nil
}

func (s *alertServiceStub) List(_ context.Context, req dto.AlertListRequest) (dto.AlertListResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastList = req
	return s.list, s.err
}

func (s *alertServiceStub) MarkRead(_ context.Context, id uint) (dto.AlertResponse, error) {
	if s.err != nil {
		return dto.AlertResponse{}, s.err
	}
	marked := s.marked
	marked.ID = id
	marked.Read = true
	return marked, nil
}

func (s *alertServiceStub) Subscribe() (<-chan dto.AlertResponse, func()) {
	var once sync.Once
	return s.stream, func() {
		once.Do(func() { close(s.closed) })
	}
}

func (s *alertServiceStub) Start(context.Context) {}
