package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"scanprint/internal/scanner"
)

type ScanHandler struct {
	manager *scanner.Manager
	matcher *scanner.Matcher
	corpus  func() *scanner.Corpus
	sink    scanner.Sink
}

func NewScanHandler(manager *scanner.Manager, matcher *scanner.Matcher, corpus func() *scanner.Corpus, sink scanner.Sink) *ScanHandler {
	return &ScanHandler{manager: manager, matcher: matcher, corpus: corpus, sink: sink}
}

// StartScan acquires a camera and begins the scan loop
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      string `json:"mode"`
		CameraURL string `json:"camera_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.manager.StartSession(r.Context(), scanner.Mode(req.Mode), req.CameraURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"session": session.Snapshot(),
	})
}

// ScanStatus reports the live state of a scan session
func (h *ScanHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, ok := h.manager.Get(vars["id"])
	if !ok {
		http.Error(w, "Scan session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"session": session.Snapshot(),
	})
}

// ContinueScan resumes scanning after a match
func (h *ScanHandler) ContinueScan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.manager.Continue(vars["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// StopScan tears the session down and releases the camera
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.manager.Stop(vars["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// ManualScan runs a typed value through the same match pipeline the
// camera loop uses, for when OCR cannot read a label
func (h *ScanHandler) ManualScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode  string `json:"mode"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode := scanner.Mode(req.Mode)
	if mode != scanner.ModeOrder && mode != scanner.ModeBarcode {
		http.Error(w, "mode must be order or barcode", http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}

	corpus := h.corpus()
	result := h.matcher.Match(req.Value, mode, corpus)
	if !result.Hit {
		http.Error(w, "No matching order", http.StatusNotFound)
		return
	}

	ev := scanner.MatchEvent{
		SessionID: "manual",
		Mode:      mode,
		Value:     result.Value,
	}
	switch mode {
	case scanner.ModeOrder:
		ev.OrderID = result.Value
		ev.PrintCode, _ = corpus.PrintCode(result.Value)
	case scanner.ModeBarcode:
		ev.PrintCode = result.Value
		ev.OrderID, _ = corpus.OrderIDForValue(result.Value)
	}

	if err := h.sink.HandleMatch(r.Context(), ev); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"match":   ev,
	})
}
