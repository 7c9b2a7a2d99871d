package services

import (
	"context"
	"fmt"
	"log"

	"scanprint/internal/models"
	"scanprint/internal/scanner"
)

// ScanSink receives confirmed matches from scan sessions, persists the
// outcome, and drives the print queue. The scan UI has already advanced by
// the time persistence runs; failures here are logged and surfaced as status
// text, never rolled back.
type ScanSink struct {
	orders *OrderService
	queue  *PrintQueueService
}

// NewScanSink wires the sink
func NewScanSink(orders *OrderService, queue *PrintQueueService) *ScanSink {
	return &ScanSink{orders: orders, queue: queue}
}

// HandleMatch implements scanner.Sink
func (s *ScanSink) HandleMatch(ctx context.Context, ev scanner.MatchEvent) error {
	record := models.ScanRecord{
		SessionID: ev.SessionID,
		Mode:      string(ev.Mode),
		OrderID:   ev.OrderID,
		Value:     ev.Value,
		Status:    "success",
	}

	var err error
	switch ev.Mode {
	case scanner.ModeOrder:
		// an admin scanned the order id on paperwork: queue the label print
		_, err = s.queue.Enqueue(ev.OrderID, ev.PrintCode)
	case scanner.ModeBarcode:
		// a shipper scanned the printed barcode: confirm pickup
		_, err = s.orders.MarkScannedByPrintCode(ev.PrintCode)
	default:
		err = fmt.Errorf("unknown scan mode %q", ev.Mode)
	}

	if err != nil {
		record.Status = "failed"
		record.ErrorMsg = err.Error()
	}

	if recErr := s.orders.RecordScan(record); recErr != nil {
		log.Printf("WARNING: failed to store scan record for %s: %v", ev.Value, recErr)
	}

	return err
}
