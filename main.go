package main

import (
	"database/sql"
	"net/http"
	"os"

	"account-service/internal/config"
	"account-service/internal/publisher"
	"account-service/internal/repository"
	"account-service/internal/server"
	"account-service/internal/service"
	"account-service/internal/tracker"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("Could not load configuration")
	}

	log.Info("Starting database migration...")
	m, err := migrate.New(cfg.DB.MigrationsPath, cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not create migrate instance")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithField("error", err).Fatal("Could not apply migration")
	}
	log.Info("Database migration finished successfully.")

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to the database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.WithField("error", err).Fatal("Could not ping the database")
	}
	log.Info("Successfully connected to the PostgreSQL database.")

	// Audit event delivery: Kafka is optional, the durable log is not.
	var auditPublisher service.AuditPublisher
	if cfg.Kafka.BootstrapServers != "" {
		kafkaPublisher, err := publisher.NewAuditPublisher(cfg.Kafka.BootstrapServers, cfg.Kafka.AuditTopic)
		if err != nil {
			log.WithField("error", err).Fatal("Could not create audit publisher")
		}
		defer kafkaPublisher.Close()
		auditPublisher = kafkaPublisher
	} else {
		log.Warn("KAFKA_BOOTSTRAP_SERVERS not set, audit events will only be stored in the database")
	}

	// Create repositories and the change-detection pipeline
	auditLogRepository := repository.NewPostgresAuditLogRepository(db)
	auditService := service.NewAuditService(tracker.ReflectProvider{}, auditLogRepository, auditPublisher)
	changeTracker := tracker.New(tracker.ReflectProvider{}, auditService)
	accountRepository := repository.NewPostgresAccountRepository(db, changeTracker)

	// Create service
	accountService := service.NewAccountService(accountRepository, auditService)

	// Create server
	srv := server.NewServer(accountService, auditService, db)

	// Setup Echo
	e := echo.New()

	// Health check
	e.GET("/health", srv.HealthCheck)

	// CRUD endpoints
	api := e.Group("/api")
	accounts := api.Group("/accounts")
	accounts.POST("", srv.CreateAccount)
	accounts.GET("/:id", srv.GetAccount)
	accounts.GET("/email/:email", srv.GetAccountByEmail)
	accounts.PUT("/:id", srv.UpdateAccount)
	accounts.DELETE("/:id", srv.DeleteAccount)
	accounts.GET("", srv.ListAccounts)

	// Lifecycle endpoints
	accounts.POST("/:id/suspend", srv.SuspendAccount)
	accounts.POST("/:id/close", srv.CloseAccount)

	// Audit trail
	accounts.GET("/:id/audit", srv.GetAccountAudit)

	log.WithField("port", cfg.Server.Port).Info("Account service is starting with Echo")

	if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
		log.WithField("error", err).Fatal("Echo server failed to start")
	}
}
