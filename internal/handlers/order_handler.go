package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"scanprint/internal/labels"
	"scanprint/internal/models"
	"scanprint/internal/services"
)

type OrderHandler struct {
	orders *services.OrderService
	queue  *services.PrintQueueService
}

func NewOrderHandler(orders *services.OrderService, queue *services.PrintQueueService) *OrderHandler {
	return &OrderHandler{orders: orders, queue: queue}
}

// GetOrders returns all orders sorted by order id
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.GetAll()
	if err != nil {
		http.Error(w, "Failed to fetch orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"orders":  orders,
		"total":   len(orders),
	})
}

// AddOrder creates a single order
func (h *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(order.OrderID) == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	created, err := h.orders.Add(order)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"order":   created,
	})
}

// UpdateOrder applies a partial update to an order
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.orders.Update(uint(id), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"order":   order,
	})
}

// ImportOrders ingests a spreadsheet export, skipping duplicates
func (h *OrderHandler) ImportOrders(w http.ResponseWriter, r *http.Request) {
	var rows []models.OrderImportRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(rows) == 0 {
		http.Error(w, "No rows to import", http.StatusBadRequest)
		return
	}

	orders, err := h.orders.AddBulk(rows)
	if err != nil {
		http.Error(w, "Failed to import orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"orders":  orders,
		"total":   len(orders),
	})
}

// CreatePrintRequest queues a label print for an order (manual path)
func (h *OrderHandler) CreatePrintRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"order_id"`
		PrintCode string `json:"print_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.OrderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	request, err := h.queue.Enqueue(req.OrderID, req.PrintCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"print_request": request,
	})
}

// GetPendingPrintRequests lists print requests not yet dispatched
func (h *OrderHandler) GetPendingPrintRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.Pending()
	if err != nil {
		http.Error(w, "Failed to fetch print requests", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"print_requests": pending,
		"total":          len(pending),
	})
}

// GetLabel renders the label for an order. Returns PNG by default,
// or a base64 data URI when ?format=datauri is set (preview screens).
func (h *OrderHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orderID := vars["orderId"]

	order, err := h.orders.GetByOrderID(orderID)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	printCode := order.PrintCode
	if printCode == "" {
		printCode = order.OrderID
	}

	if r.URL.Query().Get("format") == "datauri" {
		uri, err := labels.RenderDataURI(printCode)
		if err != nil {
			http.Error(w, "Failed to render label", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":  true,
			"order_id": order.OrderID,
			"label":    uri,
		})
		return
	}

	png, err := labels.RenderPNG(printCode)
	if err != nil {
		http.Error(w, "Failed to render label", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// GetHistory returns recent scan records, newest first
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.orders.History(limit)
	if err != nil {
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"history": records,
		"total":   len(records),
	})
}
