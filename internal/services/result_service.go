package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/models"
	apperrors "github.com/scolarix/scolarix/pkg/errors"
	"github.com/scolarix/scolarix/pkg/logger"
	"github.com/scolarix/scolarix/pkg/metrics"
)

const (
	defaultOutOf      = 20.0
	defaultPageSize   = 50
	maxImportRowCount = 5000
)

// ResultRow is one structured spreadsheet row as submitted by the dashboard.
// Parsing and column mapping happen client-side.
type ResultRow struct {
	StudentName string    `json:"student_name" validate:"required,max=128"`
	ClassName   string    `json:"class_name" validate:"omitempty,max=32"`
	Subject     string    `json:"subject" validate:"required,max=100"`
	Score       float64   `json:"score"`
	OutOf       float64   `json:"out_of"`
	ExamDate    time.Time `json:"exam_date"`
}

// ResultFilters narrows listings and statistics.
type ResultFilters struct {
	ClassName string
	Subject   string
	Student   string
}

// SubjectStatistics aggregates one subject's results, scores normalised
// out of 20.
type SubjectStatistics struct {
	Subject string  `json:"subject"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// ResultStatistics is the aggregate view the dashboard charts consume.
type ResultStatistics struct {
	Count      int64               `json:"count"`
	Average    float64             `json:"average"`
	Min        float64             `json:"min"`
	Max        float64             `json:"max"`
	PerSubject []SubjectStatistics `json:"per_subject"`
}

// ResultService stores imported exam results and serves filtered listings
// and aggregate statistics.
type ResultService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// ResultOption customises ResultService behaviour.
type ResultOption func(*ResultService)

// WithResultClock injects a custom clock primarily for testing.
func WithResultClock(clock func() time.Time) ResultOption {
	return func(s *ResultService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewResultService constructs a ResultService.
func NewResultService(db *gorm.DB, opts ...ResultOption) (*ResultService, error) {
	if db == nil {
		return nil, errors.New("result service: db is required")
	}

	service := &ResultService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("results"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Import stores one spreadsheet's rows as a batch. The whole batch is
// written transactionally; an invalid row rejects the entire import.
func (s *ResultService) Import(ctx context.Context, fileName, importedBy string, rows []ResultRow) (*models.ImportBatch, error) {
	ctx = ensureContext(ctx)

	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperrors.NewInvalidArgument("file name is required")
	}
	if len(rows) == 0 {
		return nil, apperrors.NewInvalidArgument("at least one result row is required")
	}
	if len(rows) > maxImportRowCount {
		return nil, apperrors.NewInvalidArgument(fmt.Sprintf("import is limited to %d rows", maxImportRowCount))
	}

	results := make([]models.ExamResult, 0, len(rows))
	for i, row := range rows {
		outOf := row.OutOf
		if outOf == 0 {
			outOf = defaultOutOf
		}

		student := strings.TrimSpace(row.StudentName)
		subject := strings.TrimSpace(row.Subject)
		switch {
		case student == "":
			return nil, apperrors.NewInvalidArgument(fmt.Sprintf("row %d: student name is required", i+1))
		case subject == "":
			return nil, apperrors.NewInvalidArgument(fmt.Sprintf("row %d: subject is required", i+1))
		case outOf <= 0:
			return nil, apperrors.NewInvalidArgument(fmt.Sprintf("row %d: out_of must be positive", i+1))
		case row.Score < 0 || row.Score > outOf:
			return nil, apperrors.NewInvalidArgument(fmt.Sprintf("row %d: score must be between 0 and %g", i+1, outOf))
		}

		results = append(results, models.ExamResult{
			StudentName: student,
			ClassName:   strings.TrimSpace(row.ClassName),
			Subject:     subject,
			Score:       row.Score,
			OutOf:       outOf,
			ExamDate:    row.ExamDate,
		})
	}

	batch := models.ImportBatch{
		FileName:   fileName,
		RowCount:   len(results),
		ImportedBy: strings.ToLower(strings.TrimSpace(importedBy)),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		for i := range results {
			results[i].ImportBatchID = batch.ID
		}
		if err := tx.CreateInBatches(results, 200).Error; err != nil {
			return fmt.Errorf("create rows: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("import failed", zap.String("file", fileName), zap.Error(err))
		return nil, fmt.Errorf("result service: import: %w", err)
	}

	metrics.ImportedResults.Add(float64(len(results)))
	s.log.Info("results imported",
		zap.String("file", fileName),
		zap.Int("rows", len(results)),
	)
	return &batch, nil
}

// List returns filtered results, newest exam first, with the total count for
// pagination.
func (s *ResultService) List(ctx context.Context, filters ResultFilters, page, pageSize int) ([]models.ExamResult, int64, error) {
	ctx = ensureContext(ctx)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = defaultPageSize
	}

	query := s.filtered(ctx, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("result service: count: %w", err)
	}

	var results []models.ExamResult
	if err := query.
		Order("exam_date desc, student_name asc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("result service: list: %w", err)
	}

	return results, total, nil
}

// Statistics aggregates the filtered results with scores normalised out
// of 20 so subjects graded on different scales remain comparable.
func (s *ResultService) Statistics(ctx context.Context, filters ResultFilters) (*ResultStatistics, error) {
	ctx = ensureContext(ctx)

	var overall struct {
		Count   int64
		Average float64
		Min     float64
		Max     float64
	}
	if err := s.filtered(ctx, filters).
		Select("COUNT(*) as count, COALESCE(AVG(score / out_of * 20), 0) as average, COALESCE(MIN(score / out_of * 20), 0) as min, COALESCE(MAX(score / out_of * 20), 0) as max").
		Scan(&overall).Error; err != nil {
		return nil, fmt.Errorf("result service: aggregate: %w", err)
	}

	var perSubject []SubjectStatistics
	if err := s.filtered(ctx, filters).
		Select("subject, COUNT(*) as count, COALESCE(AVG(score / out_of * 20), 0) as average").
		Group("subject").
		Order("subject asc").
		Scan(&perSubject).Error; err != nil {
		return nil, fmt.Errorf("result service: aggregate by subject: %w", err)
	}

	return &ResultStatistics{
		Count:      overall.Count,
		Average:    overall.Average,
		Min:        overall.Min,
		Max:        overall.Max,
		PerSubject: perSubject,
	}, nil
}

// Snapshot persists the current unfiltered statistics for cheap dashboard
// loads; called from the maintenance scheduler.
func (s *ResultService) Snapshot(ctx context.Context) (*models.StatsSnapshot, error) {
	ctx = ensureContext(ctx)

	stats, err := s.Statistics(ctx, ResultFilters{})
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("result service: marshal snapshot: %w", err)
	}

	snapshot := models.StatsSnapshot{
		ComputedAt: s.now().UTC(),
		Payload:    datatypes.JSON(payload),
	}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return nil, fmt.Errorf("result service: store snapshot: %w", err)
	}

	return &snapshot, nil
}

// LatestSnapshot returns the most recent cached statistics, or nil when none
// has been computed yet.
func (s *ResultService) LatestSnapshot(ctx context.Context) (*models.StatsSnapshot, error) {
	ctx = ensureContext(ctx)

	var snapshot models.StatsSnapshot
	err := s.db.WithContext(ctx).Order("computed_at desc").First(&snapshot).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("result service: latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// PruneSnapshots deletes snapshots older than the retention window.
func (s *ResultService) PruneSnapshots(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Where("computed_at < ?", cutoff).
		Delete(&models.StatsSnapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("result service: prune snapshots: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *ResultService) filtered(ctx context.Context, filters ResultFilters) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.ExamResult{})

	if class := strings.TrimSpace(filters.ClassName); class != "" {
		query = query.Where("class_name = ?", class)
	}
	if subject := strings.TrimSpace(filters.Subject); subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if student := strings.TrimSpace(filters.Student); student != "" {
		query = query.Where("student_name LIKE ?", "%"+student+"%")
	}

	return query
}
