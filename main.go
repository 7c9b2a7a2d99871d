package main

import (
	"bufio"
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanprint/internal/database"
	"scanprint/internal/handlers"
	"scanprint/internal/labels"
	"scanprint/internal/metrics"
	"scanprint/internal/relay"
	"scanprint/internal/scanner"
	"scanprint/internal/services"
)

// loadEnvFile loads environment variables from a file
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // File doesn't exist, skip silently
	}
	defer file.Close()

	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}

	log.Printf("DEBUG: Loaded environment from %s", filename)
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, ngrok-skip-browser-warning")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration, unit time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("WARNING: Invalid %s value %q, using default", key, raw)
		return fallback
	}
	return time.Duration(n) * unit
}

func main() {
	log.Println("DEBUG: Starting scan-to-print coordinator...")

	// Load environment variables from .env file
	loadEnvFile(".env")
	loadEnvFile("env.production")
	loadEnvFile("env.local")

	// Initialize database
	log.Println("DEBUG: Initializing database...")
	database.InitDatabase()
	log.Println("DEBUG: Database initialized successfully")

	metrics.Register()

	// Seed operator accounts
	authService := services.NewAuthService(database.GetDB())
	if err := authService.EnsureDefaultAccounts(); err != nil {
		log.Fatalf("Failed to seed operator accounts: %v", err)
	}

	// Order corpus and print pipeline
	orderService, err := services.NewOrderService(database.GetDB())
	if err != nil {
		log.Fatalf("Failed to build order corpus: %v", err)
	}

	spoolDir := getEnv("SPOOL_DIR", "spool")
	printer, err := labels.NewSpoolPrinter(spoolDir)
	if err != nil {
		log.Fatalf("Failed to create spool directory %s: %v", spoolDir, err)
	}

	printQueue := services.NewPrintQueueService(database.GetDB(), orderService, printer, 0)
	printQueue.Start(context.Background())
	defer printQueue.Stop()

	scanSink := services.NewScanSink(orderService, printQueue)

	// Scan sessions
	recognizer := scanner.NewHTTPRecognizer(
		getEnv("OCR_URL", "http://localhost:8884/recognize"),
		scanner.DefaultRecognizerConfig(),
	)
	manager := scanner.NewManager(scanner.ManagerConfig{
		Recognizer: recognizer,
		Sink:       scanSink,
		Corpus:     orderService.Corpus,
		OpenSource: func(ctx context.Context, cameraURL string) (scanner.FrameSource, error) {
			return scanner.OpenHTTPFrameSource(ctx, cameraURL)
		},
		CameraURL:   getEnv("CAMERA_URL", "http://localhost:8885/snapshot"),
		Interval:    getEnvDuration("SCAN_INTERVAL_MS", time.Second, time.Millisecond),
		ResumeAfter: getEnvDuration("SCAN_RESUME_SECONDS", 0, time.Second),
	})
	defer manager.StopAll()

	matcher := scanner.NewMatcher()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	orderHandler := handlers.NewOrderHandler(orderService, printQueue)
	scanHandler := handlers.NewScanHandler(manager, matcher, orderService.Corpus, scanSink)

	r := mux.NewRouter()

	// Auth endpoints
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/profile", authHandler.Profile).Methods("GET")

	// Order endpoints
	r.HandleFunc("/api/orders", orderHandler.GetOrders).Methods("GET")
	r.HandleFunc("/api/orders", orderHandler.AddOrder).Methods("POST")
	r.HandleFunc("/api/orders/bulk", orderHandler.ImportOrders).Methods("POST")
	r.HandleFunc("/api/orders/{id}", orderHandler.UpdateOrder).Methods("PUT")

	// Print endpoints
	r.HandleFunc("/api/print-requests", orderHandler.CreatePrintRequest).Methods("POST")
	r.HandleFunc("/api/print-requests/pending", orderHandler.GetPendingPrintRequests).Methods("GET")
	r.HandleFunc("/api/labels/{orderId}", orderHandler.GetLabel).Methods("GET")

	// Scan endpoints
	r.HandleFunc("/api/scan/start", scanHandler.StartScan).Methods("POST")
	r.HandleFunc("/api/scan/manual", scanHandler.ManualScan).Methods("POST")
	r.HandleFunc("/api/scan/{id}", scanHandler.ScanStatus).Methods("GET")
	r.HandleFunc("/api/scan/{id}/continue", scanHandler.ContinueScan).Methods("POST")
	r.HandleFunc("/api/scan/{id}/stop", scanHandler.StopScan).Methods("POST")

	// History endpoint
	r.HandleFunc("/api/history", orderHandler.GetHistory).Methods("GET")

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","message":"Backend is running"}`))
	}).Methods("GET")

	// Apply CORS middleware
	handler := corsMiddleware(r)

	// Session relay on its own listener so printer terminals can connect
	// without going through the API surface
	relayPort := getEnv("RELAY_PORT", "3001")
	hub := relay.NewHub(relay.NewSessionTable())
	go func() {
		log.Printf("🔌 Session relay listening on :%s (path /ws)", relayPort)
		if err := http.ListenAndServe(":"+relayPort, hub.Handler()); err != nil {
			log.Fatalf("Relay server failed: %v", err)
		}
	}()

	port := getEnv("PORT", "9090")

	log.Printf("🚀 Scan-to-Print Backend started on :%s", port)
	log.Println("📡 Available endpoints:")
	log.Println("   🔐 AUTH:")
	log.Println("      POST /api/auth/login          - Operator login")
	log.Println("      GET  /api/auth/profile        - Get operator profile")
	log.Println("   📦 ORDERS:")
	log.Println("      GET  /api/orders              - List orders")
	log.Println("      POST /api/orders              - Add order")
	log.Println("      POST /api/orders/bulk         - Import spreadsheet rows")
	log.Println("      PUT  /api/orders/{id}         - Update order")
	log.Println("   🖨️  PRINT:")
	log.Println("      POST /api/print-requests      - Queue a label print")
	log.Println("      GET  /api/print-requests/pending - Pending print requests")
	log.Println("      GET  /api/labels/{orderId}    - Render label PNG")
	log.Println("   📷 SCAN:")
	log.Println("      POST /api/scan/start          - Start scan session")
	log.Println("      POST /api/scan/manual         - Manual value entry")
	log.Println("      GET  /api/scan/{id}           - Scan session status")
	log.Println("      POST /api/scan/{id}/continue  - Resume after match")
	log.Println("      POST /api/scan/{id}/stop      - Stop scan session")
	log.Println("   📜 HISTORY:")
	log.Println("      GET  /api/history             - Recent scan records")

	log.Fatal(http.ListenAndServe(":"+port, handler))
}
