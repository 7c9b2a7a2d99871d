package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scanprint/internal/models"
	"scanprint/internal/scanner"

	"gorm.io/gorm"
)

// OrderService owns the order records and the in-memory orderId -> printCode
// corpus the match engine reads. The corpus is rebuilt wholesale on every
// change to the order set, never patched incrementally.
type OrderService struct {
	db *gorm.DB

	mu      sync.RWMutex
	corpus  *scanner.Corpus
	version uint64
}

// NewOrderService loads the initial corpus from the database
func NewOrderService(db *gorm.DB) (*OrderService, error) {
	s := &OrderService{db: db}
	if err := s.RebuildCorpus(); err != nil {
		return nil, err
	}
	return s, nil
}

// GetAll returns every order
func (s *OrderService) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.Order("order_id asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetByOrderID returns one order by its business key
func (s *OrderService) GetByOrderID(orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("order_id = ?", strings.TrimSpace(orderID)).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Add creates one order ad hoc
func (s *OrderService) Add(order models.Order) (*models.Order, error) {
	order.OrderID = strings.TrimSpace(order.OrderID)
	if order.OrderID == "" {
		return nil, errors.New("orderId is required")
	}

	var existing models.Order
	if err := s.db.Where("order_id = ?", order.OrderID).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("order %s already exists", order.OrderID)
	}

	if err := s.db.Create(&order).Error; err != nil {
		return nil, err
	}

	if err := s.RebuildCorpus(); err != nil {
		return nil, err
	}
	return &order, nil
}

// updatableOrderColumns maps patchable request fields to their columns.
// orderId is the corpus key and only Add may set it; the print ledger
// columns have their own mutation paths.
var updatableOrderColumns = map[string]string{
	"printCode":   "print_code",
	"printed":     "printed",
	"scanned":     "scanned",
	"serries":     "serries",
	"recipttedAt": "reciptted_at",
}

// Update patches one order by primary key. Only whitelisted fields are
// accepted; anything else is rejected rather than silently dropped.
func (s *OrderService) Update(id uint, updates map[string]interface{}) (*models.Order, error) {
	filtered := make(map[string]interface{}, len(updates))
	for key, value := range updates {
		column, ok := updatableOrderColumns[key]
		if !ok {
			return nil, fmt.Errorf("field %s cannot be updated", key)
		}
		if text, ok := value.(string); ok {
			value = strings.TrimSpace(text)
		}
		filtered[column] = value
	}
	if len(filtered) == 0 {
		return nil, errors.New("no updatable fields given")
	}

	var order models.Order
	if err := s.db.First(&order, id).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&order).Updates(filtered).Error; err != nil {
		return nil, err
	}
	if err := s.db.First(&order, id).Error; err != nil {
		return nil, err
	}

	if err := s.RebuildCorpus(); err != nil {
		return nil, err
	}
	return &order, nil
}

// AddBulk merges an imported batch into the order set. Rows whose trimmed
// orderId already exists, in the database or earlier in the same batch, are
// skipped so the merged corpus holds exactly one record per key.
func (s *OrderService) AddBulk(rows []models.OrderImportRow) ([]models.Order, error) {
	existing, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, order := range existing {
		seen[order.OrderID] = true
	}

	var batch []models.Order
	for _, row := range rows {
		order := row.ToOrder()
		if order.OrderID == "" || seen[order.OrderID] {
			continue
		}
		seen[order.OrderID] = true
		batch = append(batch, order)
	}

	if len(batch) > 0 {
		if err := s.db.Create(&batch).Error; err != nil {
			return nil, err
		}
	}

	if err := s.RebuildCorpus(); err != nil {
		return nil, err
	}
	return s.GetAll()
}

// MarkPrinted records one completed print on the order
func (s *OrderService) MarkPrinted(orderID string) (*models.Order, error) {
	order, err := s.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}

	order.RecordPrint(time.Now())
	if err := s.db.Save(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// MarkScannedByPrintCode flags the order whose barcode a shipper just scanned
func (s *OrderService) MarkScannedByPrintCode(printCode string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("print_code = ?", strings.TrimSpace(printCode)).First(&order).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&order).Update("scanned", true).Error; err != nil {
		return nil, err
	}
	order.Scanned = true
	return &order, nil
}

// Corpus returns the current immutable corpus snapshot
func (s *OrderService) Corpus() *scanner.Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// RebuildCorpus regenerates the orderId -> printCode snapshot from the
// database and swaps it in with a new version
func (s *OrderService) RebuildCorpus() error {
	orders, err := s.GetAll()
	if err != nil {
		return err
	}

	mapping := make(map[string]string, len(orders))
	for _, order := range orders {
		mapping[order.OrderID] = order.PrintCode
	}

	s.mu.Lock()
	s.version++
	s.corpus = scanner.NewCorpus(s.version, mapping)
	s.mu.Unlock()
	return nil
}

// RecordScan stores one scan outcome for the history screen
func (s *OrderService) RecordScan(record models.ScanRecord) error {
	return s.db.Create(&record).Error
}

// History returns recent scan records, newest first
func (s *OrderService) History(limit int) ([]models.ScanRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []models.ScanRecord
	if err := s.db.Order("scanned_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
