package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	checkoutControllers "github.com/tiendaluz/ecommerce-api/controllers/checkout"
	"github.com/tiendaluz/ecommerce-api/gateways/docstore"
	"github.com/tiendaluz/ecommerce-api/gateways/mail"
	"github.com/tiendaluz/ecommerce-api/gateways/payment"
	"github.com/tiendaluz/ecommerce-api/gateways/taxinvoice"
	"github.com/tiendaluz/ecommerce-api/middleware"
	"github.com/tiendaluz/ecommerce-api/models"
	"github.com/tiendaluz/ecommerce-api/routes"
	"github.com/tiendaluz/ecommerce-api/services/checkout"
	"github.com/tiendaluz/ecommerce-api/services/invoice"
	"github.com/tiendaluz/ecommerce-api/store"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Structured JSON logs for the saga components
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Init DB
	db := initDatabase()

	// Auto-migrate all tables
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.LineItem{},
		&models.InvoiceFolio{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	st := store.NewGormStore(db)

	// External collaborators, constructed here and injected — no
	// package-level client state.
	paymentCfg, err := payment.FromEnv()
	if err != nil {
		log.Fatalf("payment gateway config: %v", err)
	}
	taxCfg, err := taxinvoice.FromEnv()
	if err != nil {
		log.Fatalf("tax invoicing config: %v", err)
	}
	docsCfg, err := docstore.FromEnv()
	if err != nil {
		log.Fatalf("document store config: %v", err)
	}
	mailCfg, err := mail.FromEnv()
	if err != nil {
		log.Fatalf("mail config: %v", err)
	}

	currency := os.Getenv("CHECKOUT_CURRENCY")
	if currency == "" {
		currency = "MXN"
	}
	series := os.Getenv("INVOICE_SERIES")
	if series == "" {
		series = "A"
	}

	orchestrator := checkout.New(st, payment.NewClient(paymentCfg), mail.NewClient(mailCfg), currency)
	issuer := invoice.NewIssuer(st, taxinvoice.NewClient(taxCfg), docstore.NewClient(docsCfg), series)
	hub := checkoutControllers.NewHub()

	// Gin setup
	r := gin.Default()
	r.Use(middleware.RequestID)

	// CORS settings
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup routes
	routes.SetupRoutes(r, routes.Deps{
		Store:    st,
		Checkout: orchestrator,
		Invoices: issuer,
		Hub:      hub,
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s...", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase sets up the GORM DB connection
func initDatabase() *gorm.DB {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("DB connection failed: %v", err)
		}
		return db
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	return db
}
