package models

import (
	"time"

	"gorm.io/gorm"
)

// ScanRecord is one confirmed match from a scan session, kept for the
// history screen.
type ScanRecord struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID string         `json:"session_id" gorm:"size:100;index"`
	Mode      string         `json:"mode" gorm:"type:varchar(20);check:mode IN ('order','barcode')"`
	OrderID   string         `json:"order_id" gorm:"size:100;index"`
	Value     string         `json:"value" gorm:"size:100"`
	Status    string         `json:"status" gorm:"type:varchar(20);default:'success';check:status IN ('success','failed')"`
	ErrorMsg  string         `json:"error_msg" gorm:"size:500"`
	ScannedAt time.Time      `json:"scanned_at" gorm:"autoCreateTime"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for ScanRecord
func (ScanRecord) TableName() string {
	return "scan_records"
}
