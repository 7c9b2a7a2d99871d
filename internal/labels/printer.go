package labels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Printer performs the physical print action for one label
type Printer interface {
	Print(ctx context.Context, orderID, printCode string) error
}

// PrinterFunc adapts a plain function to the Printer interface
type PrinterFunc func(ctx context.Context, orderID, printCode string) error

// Print implements Printer
func (f PrinterFunc) Print(ctx context.Context, orderID, printCode string) error {
	return f(ctx, orderID, printCode)
}

// SpoolPrinter renders labels into a spool directory that the print daemon
// on the desk terminal watches.
type SpoolPrinter struct {
	dir string
}

// NewSpoolPrinter creates the spool directory if needed
func NewSpoolPrinter(dir string) (*SpoolPrinter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %v", err)
	}
	return &SpoolPrinter{dir: dir}, nil
}

// Print writes the rendered label into the spool
func (p *SpoolPrinter) Print(ctx context.Context, orderID, printCode string) error {
	png, err := RenderPNG(printCode)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s-%d.png", sanitizeName(orderID), time.Now().UnixNano())
	return os.WriteFile(filepath.Join(p.dir, name), png, 0o644)
}

// sanitizeName keeps spool file names filesystem-safe
func sanitizeName(orderID string) string {
	var b strings.Builder
	for _, r := range orderID {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "label"
	}
	return b.String()
}
