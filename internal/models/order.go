package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Order represents one shipment order with its printable barcode payload
type Order struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID       string     `json:"orderId" gorm:"uniqueIndex;size:100;not null"`
	PrintCode     string     `json:"printCode" gorm:"size:100"`
	Printed       bool       `json:"printed" gorm:"default:false"`
	Scanned       bool       `json:"scanned" gorm:"default:false"`
	PrintCount    int        `json:"printCount" gorm:"default:0"`
	LastPrintDate *time.Time `json:"lastPrintDate" gorm:"default:null"`
	PrintDates    string     `json:"-" gorm:"type:text"` // JSON array of timestamps, newest first
	Serries       string     `json:"serries" gorm:"size:100"`
	RecipttedAt   string     `json:"recipttedAt" gorm:"size:100"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name for Order
func (Order) TableName() string {
	return "orders"
}

// BeforeSave trims whitespace so orderId comparisons are stable
func (o *Order) BeforeSave(tx *gorm.DB) error {
	o.OrderID = strings.TrimSpace(o.OrderID)
	o.PrintCode = strings.TrimSpace(o.PrintCode)
	return nil
}

// PrintDateList decodes the stored print timestamps (newest first)
func (o *Order) PrintDateList() []time.Time {
	if o.PrintDates == "" {
		return nil
	}
	var dates []time.Time
	if err := json.Unmarshal([]byte(o.PrintDates), &dates); err != nil {
		return nil
	}
	return dates
}

// RecordPrint prepends a print timestamp and bumps the counters
func (o *Order) RecordPrint(at time.Time) {
	dates := append([]time.Time{at}, o.PrintDateList()...)
	if encoded, err := json.Marshal(dates); err == nil {
		o.PrintDates = string(encoded)
	}
	o.Printed = true
	o.PrintCount++
	o.LastPrintDate = &at
}

// OrderImportRow is one row of a bulk import request. Field names follow the
// spreadsheet export the warehouse already uses.
type OrderImportRow struct {
	OrderID     string `json:"reference_id_2"`
	PrintCode   string `json:"printcode"`
	Printed     bool   `json:"printed"`
	Scanned     bool   `json:"scanned"`
	Serries     string `json:"serries"`
	RecipttedAt string `json:"recipttedAt"`
}

// ToOrder converts an import row into an Order record
func (r OrderImportRow) ToOrder() Order {
	return Order{
		OrderID:     strings.TrimSpace(r.OrderID),
		PrintCode:   strings.TrimSpace(r.PrintCode),
		Printed:     r.Printed,
		Scanned:     r.Scanned,
		Serries:     r.Serries,
		RecipttedAt: r.RecipttedAt,
	}
}
