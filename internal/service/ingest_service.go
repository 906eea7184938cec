package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/observability"
	"github.com/noah-isme/gema-ews-api/internal/repository"
)

// Ingest kinds. KindStudents creates missing students; the others only enrich existing ones.
const (
	IngestKindStudents   = "students"
	IngestKindAttendance = models.RecordKindAttendance
	IngestKindMarks      = models.RecordKindMarks
	IngestKindFees       = models.RecordKindFees
	IngestKindUploads    = models.RecordKindUploads
)

var (
	// ErrIngestMissingID indicates the header row has neither student_id nor id.
	ErrIngestMissingID = errors.New("csv header must contain student_id or id")
	// ErrIngestEmptyFile indicates the upload carried no header row.
	ErrIngestEmptyFile = errors.New("csv file is empty")
	// ErrIngestUnknownKind indicates an unsupported record kind.
	ErrIngestUnknownKind = errors.New("unknown ingest type")
	// ErrIngestInvalidCSV indicates the payload could not be parsed as CSV.
	ErrIngestInvalidCSV = errors.New("invalid csv")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var ingestKinds = map[string]struct{}{
	IngestKindStudents:   {},
	IngestKindAttendance: {},
	IngestKindMarks:      {},
	IngestKindFees:       {},
	IngestKindUploads:    {},
}

// FileStorage abstracts where raw uploads are archived.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// IngestOptions tunes ingestion.
type IngestOptions struct {
	Workers   int
	MaxSizeMB int
}

// IngestService loads CSV sheets into student records.
type IngestService interface {
	Ingest(ctx context.Context, kind, filename string, reader io.Reader) (dto.IngestResult, error)
	IngestUpload(ctx context.Context, kind string, file *multipart.FileHeader) (dto.IngestResult, error)
}

type ingestService struct {
	repo         repository.StudentRepository
	reclassifier Reclassifier
	storage      FileStorage
	workers      int
	maxSize      int64
	logger       zerolog.Logger
	tracer       trace.Tracer
}

type ingestRow struct {
	line   int
	fields map[string]*string
}

type ingestTally struct {
	mu      sync.Mutex
	created int
	updated int
	issues  []rowIssue
}

type rowIssue struct {
	line    int
	message string
}

// NewIngestService constructs the ingest service. storage and reclassifier may be nil.
func NewIngestService(repo repository.StudentRepository, reclassifier Reclassifier, storage FileStorage, options IngestOptions, logger zerolog.Logger) IngestService {
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if options.MaxSizeMB <= 0 {
		options.MaxSizeMB = 10
	}
	return &ingestService{
		repo:         repo,
		reclassifier: reclassifier,
		storage:      storage,
		workers:      options.Workers,
		maxSize:      int64(options.MaxSizeMB) * 1024 * 1024,
		logger:       logger.With().Str("component", "ingest_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/ingest"),
	}
}

// ParseIngestKind normalises and validates a record kind.
func ParseIngestKind(raw string) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(raw))
	if kind == "" {
		kind = IngestKindStudents
	}
	if _, ok := ingestKinds[kind]; !ok {
		return "", fmt.Errorf("%w: %s", ErrIngestUnknownKind, raw)
	}
	return kind, nil
}

func (s *ingestService) IngestUpload(ctx context.Context, kind string, file *multipart.FileHeader) (dto.IngestResult, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.upload")
	defer span.End()
	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))

	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.IngestResult{}, err
	}
	if file.Size > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return dto.IngestResult{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.IngestResult{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		return dto.IngestResult{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return dto.IngestResult{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !isCSVMime(detected) {
		span.SetStatus(codes.Error, "type not allowed")
		return dto.IngestResult{}, ErrUploadTypeNotAllowed
	}

	name := sanitizeFileName(file.Filename)
	archiveURL := ""
	if s.storage != nil {
		url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("failed to archive upload")
		} else {
			archiveURL = url
		}
	}

	result, err := s.Ingest(ctx, kind, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.ArchiveURL = archiveURL
	return result, nil
}

func (s *ingestService) Ingest(ctx context.Context, kind, filename string, reader io.Reader) (dto.IngestResult, error) {
	kind, err := ParseIngestKind(kind)
	if err != nil {
		return dto.IngestResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "ingest.csv", trace.WithAttributes(
		attribute.String("ingest.kind", kind),
		attribute.String("ingest.file", filename),
	))
	defer span.End()

	order, groups, rows, err := readRows(reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return dto.IngestResult{}, err
	}

	tally := &ingestTally{}
	for _, row := range groups[""] {
		tally.issue(row.line, fmt.Sprintf("Missing student_id in row %d", row.line))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, id := range order {
		entries := groups[id]
		g.Go(func() error {
			for _, row := range entries {
				if err := s.apply(gctx, kind, id, row, tally); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return dto.IngestResult{}, err
	}

	result := tally.result(kind, filename, rows)
	observability.IngestRows().WithLabelValues(kind, "applied").Add(float64(result.Created + result.Updated))
	observability.IngestRows().WithLabelValues(kind, "issue").Add(float64(len(result.Issues)))

	if s.reclassifier != nil && result.Created+result.Updated > 0 {
		reclassified, err := s.reclassifier.Reclassify(ctx)
		if err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("reclassify after ingest: %w", err)
		}
		result.Reclassified = &reclassified
	}

	span.SetAttributes(
		attribute.Int("ingest.rows", result.RowsProcessed),
		attribute.Int("ingest.created", result.Created),
		attribute.Int("ingest.updated", result.Updated),
		attribute.Int("ingest.issues", len(result.Issues)),
	)
	s.logger.Info().
		Str("kind", kind).
		Str("file", filename).
		Int("rows", result.RowsProcessed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("issues", len(result.Issues)).
		Msg("csv ingested")

	return result, nil
}

func (s *ingestService) apply(ctx context.Context, kind, id string, row ingestRow, tally *ingestTally) error {
	create := kind == IngestKindStudents
	_, created, err := s.repo.Upsert(ctx, id, row.fields, create)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tally.issue(row.line, fmt.Sprintf("Student %s not found", id))
			return nil
		}
		return fmt.Errorf("row %d: %w", row.line, err)
	}

	if !create {
		if err := s.repo.MergeRecord(ctx, id, kind, row.fields); err != nil {
			return fmt.Errorf("row %d: %w", row.line, err)
		}
	}

	tally.applied(created)
	return nil
}

// readRows parses the sheet and groups rows by student id in first-seen order.
// Rows without an id are grouped under "".
func readRows(reader io.Reader) ([]string, map[string][]ingestRow, int, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, 0, ErrIngestEmptyFile
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrIngestInvalidCSV, err)
	}

	columns := make([]string, len(header))
	idIndex := -1
	for i, name := range header {
		columns[i] = normalizeHeader(name)
	}
	for _, candidate := range []string{"student_id", "id"} {
		for i, column := range columns {
			if column == candidate {
				idIndex = i
				break
			}
		}
		if idIndex >= 0 {
			break
		}
	}
	if idIndex < 0 {
		return nil, nil, 0, ErrIngestMissingID
	}

	order := make([]string, 0)
	groups := make(map[string][]ingestRow)
	rows := 0
	line := 1
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: %v", ErrIngestInvalidCSV, err)
		}
		line++
		rows++

		fields := make(map[string]*string, len(columns))
		for i, column := range columns {
			if column == "" || column == "student_id" || column == "id" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value == "" {
				fields[column] = nil
				continue
			}
			v := value
			fields[column] = &v
		}

		id := ""
		if idIndex < len(record) {
			id = strings.TrimSpace(record[idIndex])
		}
		if id != "" {
			if _, seen := groups[id]; !seen {
				order = append(order, id)
			}
		}
		groups[id] = append(groups[id], ingestRow{line: line, fields: fields})
	}

	return order, groups, rows, nil
}

func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
}

func isCSVMime(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/csv") || m.Is("text/plain") {
			return true
		}
	}
	return false
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	return base + ".csv"
}

func (t *ingestTally) applied(created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if created {
		t.created++
	} else {
		t.updated++
	}
}

func (t *ingestTally) issue(line int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issues = append(t.issues, rowIssue{line: line, message: message})
}

func (t *ingestTally) result(kind, filename string, rows int) dto.IngestResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	sort.SliceStable(t.issues, func(i, j int) bool { return t.issues[i].line < t.issues[j].line })
	issues := make([]string, 0, len(t.issues))
	for _, issue := range t.issues {
		issues = append(issues, issue.message)
	}

	return dto.IngestResult{
		Kind:          kind,
		FileName:      filename,
		RowsProcessed: rows,
		Created:       t.created,
		Updated:       t.updated,
		Issues:        issues,
	}
}
