package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"Astrofeed/internal/api/middleware"
	"Astrofeed/internal/api/routes"
	"Astrofeed/internal/config"
	"Astrofeed/internal/db/postgres"
)

func main() {
	cfg, err := config.Load(true)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("Connected to feed database")

	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	log.Println("Migrations completed successfully")

	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	// Rate limiting: 300 requests per minute per IP
	rateLimiter := middleware.NewRateLimiter(300, 1*time.Minute)
	r.Use(rateLimiter.Middleware)

	feedRepo := postgres.NewFeedRepository(db)
	routes.RegisterFeedRoutes(r, cfg, feedRepo)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	fmt.Printf("Astrofeed server starting on port %d as %s\n", cfg.Port, cfg.ServiceDID)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), r))
}
