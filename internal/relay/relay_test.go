package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSessionTableRegisterAndReplace(t *testing.T) {
	table := NewSessionTable()

	table.Register("S1", "conn-a")
	if connID, ok := table.Lookup("S1"); !ok || connID != "conn-a" {
		t.Fatalf("Lookup(S1) = %q, %v", connID, ok)
	}

	// a later registration silently replaces the earlier one
	table.Register("S1", "conn-b")
	if connID, _ := table.Lookup("S1"); connID != "conn-b" {
		t.Errorf("expected conn-b after re-register, got %q", connID)
	}
	if table.Len() != 1 {
		t.Errorf("expected one entry, got %d", table.Len())
	}
}

func TestSessionTableRemoveConnection(t *testing.T) {
	table := NewSessionTable()
	table.Register("S1", "conn-a")
	table.Register("S2", "conn-b")

	sessionID, removed := table.RemoveConnection("conn-a")
	if !removed || sessionID != "S1" {
		t.Fatalf("RemoveConnection = %q, %v", sessionID, removed)
	}
	if _, ok := table.Lookup("S1"); ok {
		t.Error("S1 still bound after removal")
	}
	if _, ok := table.Lookup("S2"); !ok {
		t.Error("S2 should be untouched")
	}

	if _, removed := table.RemoveConnection("conn-a"); removed {
		t.Error("second removal for the same connection must be a no-op")
	}
}

func newRelayServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(NewSessionTable())
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)
	return server, hub
}

func dialRelay(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	wsURL := strings.Replace(server.URL, "http://", "ws://", 1) + "/ws"
	client, err := Dial(context.Background(), wsURL)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForBinding(t *testing.T, hub *Hub, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := hub.Table().Lookup(sessionID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("printer never registered for %s", sessionID)
}

func expectJob(t *testing.T, c *Client, orderID, barcode string) {
	t.Helper()
	select {
	case job := <-c.PrintRequests():
		if job.OrderID != orderID || job.Barcode != barcode {
			t.Fatalf("got job %+v, want {%s %s}", job, orderID, barcode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no print request delivered")
	}
}

func expectNoJob(t *testing.T, c *Client) {
	t.Helper()
	select {
	case job, ok := <-c.PrintRequests():
		if ok {
			t.Fatalf("unexpected print request: %+v", job)
		}
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRelayRoutesToRegisteredPrinter(t *testing.T) {
	server, hub := newRelayServer(t)

	printer := dialRelay(t, server)
	scanner := dialRelay(t, server)

	if err := printer.RegisterPrinter("sessA"); err != nil {
		t.Fatalf("RegisterPrinter failed: %v", err)
	}
	waitForBinding(t, hub, "sessA")

	if err := scanner.SendScan("sessA", "#X", "123"); err != nil {
		t.Fatalf("SendScan failed: %v", err)
	}
	expectJob(t, printer, "#X", "123")

	// another session delivers to nobody
	other := dialRelay(t, server)
	if err := other.SendScan("sessB", "#Y", "456"); err != nil {
		t.Fatalf("SendScan failed: %v", err)
	}
	expectNoJob(t, printer)
}

func TestRelayLaterRegistrationWins(t *testing.T) {
	server, hub := newRelayServer(t)

	first := dialRelay(t, server)
	second := dialRelay(t, server)
	scanner := dialRelay(t, server)

	if err := first.RegisterPrinter("S1"); err != nil {
		t.Fatal(err)
	}
	waitForBinding(t, hub, "S1")

	if err := second.RegisterPrinter("S1"); err != nil {
		t.Fatal(err)
	}
	// the hub processes registers in arrival order on each connection;
	// give the replacement a moment to land
	time.Sleep(100 * time.Millisecond)

	if err := scanner.SendScan("S1", "#A", "111"); err != nil {
		t.Fatal(err)
	}
	expectJob(t, second, "#A", "111")
	expectNoJob(t, first)
}

func TestRelayDropsScanBeforeRegister(t *testing.T) {
	server, hub := newRelayServer(t)

	scanner := dialRelay(t, server)
	if err := scanner.SendScan("S1", "#A", "111"); err != nil {
		t.Fatal(err)
	}

	// the racing scan is dropped, not queued: a printer registering
	// afterwards receives nothing
	printer := dialRelay(t, server)
	if err := printer.RegisterPrinter("S1"); err != nil {
		t.Fatal(err)
	}
	waitForBinding(t, hub, "S1")
	expectNoJob(t, printer)
}

func TestRelayDisconnectRemovesBinding(t *testing.T) {
	server, hub := newRelayServer(t)

	printer := dialRelay(t, server)
	scanner := dialRelay(t, server)

	if err := printer.RegisterPrinter("S1"); err != nil {
		t.Fatal(err)
	}
	waitForBinding(t, hub, "S1")

	printer.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := hub.Table().Lookup("S1"); !ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := hub.Table().Lookup("S1"); ok {
		t.Fatal("binding survived the disconnect")
	}

	// delivered to nobody until a new register occurs
	if err := scanner.SendScan("S1", "#A", "111"); err != nil {
		t.Fatal(err)
	}

	replacement := dialRelay(t, server)
	if err := replacement.RegisterPrinter("S1"); err != nil {
		t.Fatal(err)
	}
	waitForBinding(t, hub, "S1")
	expectNoJob(t, replacement)

	if err := scanner.SendScan("S1", "#B", "222"); err != nil {
		t.Fatal(err)
	}
	expectJob(t, replacement, "#B", "222")
}
