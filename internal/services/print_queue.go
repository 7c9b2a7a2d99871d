package services

import (
	"context"
	"log"
	"sync"
	"time"

	"scanprint/internal/labels"
	"scanprint/internal/metrics"
	"scanprint/internal/models"

	"gorm.io/gorm"
)

// PrintQueueService is the single-consumer work queue behind auto-print-on-
// scan. Enqueue persists a request and nudges the watcher; the watcher claims
// each request in the database before dispatching the printer, so a request
// is never double-dispatched. A crash between claim and dispatch loses that
// one print, which is the accepted failure mode.
type PrintQueueService struct {
	db      *gorm.DB
	orders  *OrderService
	printer labels.Printer

	notify chan struct{}
	poll   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPrintQueueService wires the queue. pollInterval covers requests written
// by other processes that never hit the in-process notifier; zero picks a
// sane default.
func NewPrintQueueService(db *gorm.DB, orders *OrderService, printer labels.Printer, pollInterval time.Duration) *PrintQueueService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &PrintQueueService{
		db:      db,
		orders:  orders,
		printer: printer,
		notify:  make(chan struct{}, 1),
		poll:    pollInterval,
	}
}

// Enqueue persists a print request and wakes the watcher
func (s *PrintQueueService) Enqueue(orderID, printCode string) (*models.PrintRequest, error) {
	if printCode == "" {
		if code, ok := s.orders.Corpus().PrintCode(orderID); ok {
			printCode = code
		}
	}

	request := models.PrintRequest{
		OrderID:   orderID,
		PrintCode: printCode,
	}
	if err := s.db.Create(&request).Error; err != nil {
		return nil, err
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return &request, nil
}

// Pending returns requests not yet claimed, oldest first
func (s *PrintQueueService) Pending() ([]models.PrintRequest, error) {
	var requests []models.PrintRequest
	if err := s.db.Where("printed = ?", false).Order("created_at asc").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Start launches the watcher goroutine
func (s *PrintQueueService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(watchCtx)
}

// Stop shuts the watcher down and waits for the in-flight dispatch
func (s *PrintQueueService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

func (s *PrintQueueService) watch(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	// pick up anything enqueued before we started
	s.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
			s.drain(ctx)
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

// drain claims and dispatches every pending request
func (s *PrintQueueService) drain(ctx context.Context) {
	pending, err := s.Pending()
	if err != nil {
		log.Printf("WARNING: print queue fetch failed: %v", err)
		return
	}

	for _, request := range pending {
		if ctx.Err() != nil {
			return
		}
		s.dispatch(ctx, request)
	}
}

// dispatch claims one request and performs the print. The claim is the first
// visible action: a request row flips to printed before any side effect, so
// a concurrent or restarted consumer skips it.
func (s *PrintQueueService) dispatch(ctx context.Context, request models.PrintRequest) {
	now := time.Now()
	claim := s.db.Model(&models.PrintRequest{}).
		Where("id = ? AND printed = ?", request.ID, false).
		Updates(map[string]interface{}{"printed": true, "printed_at": now})
	if claim.Error != nil {
		log.Printf("WARNING: failed to claim print request %d: %v", request.ID, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		// someone else claimed it first
		return
	}

	printCode := request.PrintCode
	if printCode == "" {
		if code, ok := s.orders.Corpus().PrintCode(request.OrderID); ok {
			printCode = code
		}
	}
	if printCode == "" {
		metrics.PrintJobErrorsTotal.Inc()
		log.Printf("WARNING: no print code for order %s, request %d dropped", request.OrderID, request.ID)
		return
	}

	if err := s.printer.Print(ctx, request.OrderID, printCode); err != nil {
		metrics.PrintJobErrorsTotal.Inc()
		log.Printf("WARNING: print dispatch failed for order %s: %v", request.OrderID, err)
		return
	}
	metrics.PrintJobsTotal.Inc()

	if _, err := s.orders.MarkPrinted(request.OrderID); err != nil {
		log.Printf("WARNING: failed to mark order %s printed: %v", request.OrderID, err)
	}
}
