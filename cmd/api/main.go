package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/config"
	"github.com/dps-core/contract-engine/internal/handler"
	"github.com/dps-core/contract-engine/internal/integrations/centralbank"
	"github.com/dps-core/contract-engine/internal/jobs"
	"github.com/dps-core/contract-engine/internal/notify"
	"github.com/dps-core/contract-engine/internal/repository"
	"github.com/dps-core/contract-engine/internal/service"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	store, err := repository.NewPostgres(db)
	if err != nil {
		logger.Fatalf("Failed to initialize repository: %v", err)
	}
	var rates service.KeyRateSource
	if cfg.KeyRateURL != "" {
		rates = centralbank.NewClient(cfg.KeyRateURL, logger)
	}
	reminders := notify.NewSender(cfg, logger)
	svc, err := service.NewService(store, logger, cfg, rates, reminders)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	// Schedule the overdue sweep
	sweeper := jobs.NewSweeper(svc, logger)
	cronJobs, err := sweeper.Start(cfg.SweepSchedule)
	if err != nil {
		logger.Fatalf("Failed to schedule overdue sweep: %v", err)
	}
	defer cronJobs.Stop()

	// Setup router
	r := mux.NewRouter()
	r.HandleFunc("/numbering/schemes", h.CreateScheme).Methods("POST")
	r.HandleFunc("/numbering/schemes/{id}", h.GetScheme).Methods("GET")
	r.HandleFunc("/numbering/reserve", h.ReserveNumber).Methods("POST")
	r.HandleFunc("/contracts", h.CreateContract).Methods("POST")
	r.HandleFunc("/contracts/{id}", h.GetContract).Methods("GET")
	r.HandleFunc("/contracts/{id}/schedule", h.GetSchedule).Methods("GET")
	r.HandleFunc("/contracts/{id}/schedule", h.RegenerateSchedule).Methods("POST")
	r.HandleFunc("/contracts/{id}/payments", h.RecordPayment).Methods("POST")
	r.HandleFunc("/contracts/{id}/payments", h.ListPayments).Methods("GET")
	r.HandleFunc("/contracts/{id}/ledger", h.GetLedger).Methods("GET")
	r.HandleFunc("/contracts/{id}/early-settlement", h.PreviewSettlement).Methods("GET")
	r.HandleFunc("/contracts/{id}/early-settlement", h.ExecuteSettlement).Methods("POST")
	r.HandleFunc("/reports/aging", h.AgingReport).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
