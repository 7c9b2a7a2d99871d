package models

import (
	"time"

	"gorm.io/gorm"
)

// PrintRequest is a transient work item: "print this order now".
// A single consumer claims each request at most once; claiming (setting
// Printed and PrintedAt) is the consumer's first visible action after pickup.
type PrintRequest struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID   string         `json:"orderId" gorm:"size:100;not null;index"`
	PrintCode string         `json:"printCode" gorm:"size:100"`
	Printed   bool           `json:"printed" gorm:"default:false;index"`
	PrintedAt *time.Time     `json:"printedAt" gorm:"default:null"`
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"-" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for PrintRequest
func (PrintRequest) TableName() string {
	return "print_requests"
}
