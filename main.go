package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/atheastudio/creative-director/api"
	"github.com/atheastudio/creative-director/concepts"
	"github.com/atheastudio/creative-director/config"
	"github.com/atheastudio/creative-director/store"
	"github.com/atheastudio/creative-director/utils"
)

func main() {
	config.LoadConfig()

	// Initialize MongoDB
	if err := utils.ConnectMongo(config.MongoURI); err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	blobs, err := store.NewS3StoreFromConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}
	conceptHandler := api.NewConceptHandler(concepts.NewService(blobs))

	// CORS Middleware
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	http.HandleFunc("/auth/signup", corsMiddleware(api.SignupHandler))
	http.HandleFunc("/auth/login", corsMiddleware(api.LoginHandler))

	http.HandleFunc("/api/concepts", corsMiddleware(api.AuthMiddleware(conceptHandler.Handle)))
	http.HandleFunc("/api/generate-plan", corsMiddleware(api.AuthMiddleware(api.GeneratePlanHandler)))

	port := config.Port
	fmt.Printf("Server starting on port %s...\n", port)
	if err := http.ListenAndServe(":"+port, utils.LatencyMiddleware(http.DefaultServeMux)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
