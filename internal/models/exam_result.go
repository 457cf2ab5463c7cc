package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamResult is one row of an imported result spreadsheet. Parsing and
// column mapping happen client-side; the server only stores structured rows.
type ExamResult struct {
	BaseModel

	StudentName string    `gorm:"not null;index" json:"student_name"`
	ClassName   string    `gorm:"index" json:"class_name"`
	Subject     string    `gorm:"not null;index" json:"subject"`
	Score       float64   `gorm:"not null" json:"score"`
	OutOf       float64   `gorm:"not null;default:20" json:"out_of"`
	ExamDate    time.Time `gorm:"index" json:"exam_date"`

	ImportBatchID string       `gorm:"type:uuid;index" json:"import_batch_id"`
	ImportBatch   *ImportBatch `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ImportBatch groups the rows of one uploaded spreadsheet.
type ImportBatch struct {
	BaseModel

	FileName   string `gorm:"not null" json:"file_name"`
	RowCount   int    `gorm:"not null" json:"row_count"`
	ImportedBy string `gorm:"not null" json:"imported_by"`
}

// StatsSnapshot caches the aggregate statistics computed by the maintenance
// scheduler so dashboard charts load without recomputing on every request.
type StatsSnapshot struct {
	BaseModel

	ComputedAt time.Time      `gorm:"index" json:"computed_at"`
	Payload    datatypes.JSON `gorm:"not null" json:"payload"`
}
