package models

import (
	"time"

	"gorm.io/gorm"
)

// Operator represents a warehouse terminal account. Only two roles exist:
// ADMIN operators scan order ids and trigger prints, SHIPPER operators scan
// the printed barcodes to confirm pickup.
type Operator struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string `json:"username" gorm:"uniqueIndex;size:50;not null"`
	PasswordHash string `json:"-" gorm:"size:255;not null"` // "-" means don't include in JSON
	Role         string `json:"role" gorm:"type:varchar(20);default:'SHIPPER';check:role IN ('ADMIN','SHIPPER')"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Operator
func (Operator) TableName() string {
	return "operators"
}

// ScanModeForRole maps an operator role to its default scan mode:
// admins look for order ids on paperwork, shippers for printed barcodes.
func ScanModeForRole(role string) string {
	if role == "ADMIN" {
		return "order"
	}
	return "barcode"
}

// OperatorLogin represents a login request
type OperatorLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OperatorResponse represents operator data in responses
type OperatorResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	ScanMode string `json:"scan_mode"`
}
