package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// PrintJob is a print-request delivered to a registered printer
type PrintJob struct {
	OrderID string `json:"orderId"`
	Barcode string `json:"barcode"`
}

// Client is the terminal side of the relay: a desk terminal registers itself
// as the printer for a session and receives print jobs; a phone scanner
// sends scan requests into the same channel.
type Client struct {
	ws   *websocket.Conn
	jobs chan PrintJob

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a relay websocket endpoint (ws://host:port/ws)
func Dial(ctx context.Context, relayURL string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("relay dial failed: %w", err)
	}

	c := &Client{
		ws:   ws,
		jobs: make(chan PrintJob, 16),
	}
	go c.readLoop()

	return c, nil
}

// RegisterPrinter binds this connection as the printer for the session
func (c *Client) RegisterPrinter(sessionID string) error {
	return c.write(Envelope{Type: TypeRegisterPrinter, SessionID: sessionID})
}

// SendScan emits a scan event toward whatever printer holds the session.
// Fire-and-forget: a nil error only means the event left this client.
func (c *Client) SendScan(sessionID, orderID, barcode string) error {
	return c.write(Envelope{
		Type:      TypeScanRequest,
		SessionID: sessionID,
		OrderID:   orderID,
		Barcode:   barcode,
	})
}

// PrintRequests delivers incoming print jobs. The channel closes when the
// connection drops.
func (c *Client) PrintRequests() <-chan PrintJob {
	return c.jobs
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

func (c *Client) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(env)
}

func (c *Client) readLoop() {
	defer close(c.jobs)
	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Type != TypePrintRequest {
			continue
		}
		select {
		case c.jobs <- PrintJob{OrderID: env.OrderID, Barcode: env.Barcode}:
		default:
			// consumer stalled, drop rather than block the read loop
		}
	}
}
