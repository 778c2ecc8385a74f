package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcdev12/buzzer/go/internal/admin"
	"github.com/mcdev12/buzzer/go/internal/config"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg config.ServerConfig, services *Services) *http.Server {
	r := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(r, services)
	setupHealthCheck(r, services)

	handler := c.Handler(r)

	// HTTP/2 cleartext for Connect clients; WebSocket upgrades pass through.
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(r *mux.Router, services *Services) {
	services.Gateway.RegisterRoutes(r)
	services.AdminHTTP.RegisterRoutes(r)
	services.Conference.RegisterRoutes(r)

	adminPath, adminHandler := admin.NewAdminServiceHandler(services.Admin)
	r.PathPrefix(adminPath).Handler(adminHandler)
}

func setupHealthCheck(r *mux.Router, services *Services) {
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]bool{"ok": true}); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	}).Methods(http.MethodGet)
	r.Handle("/health/outbox", services.OutboxHealth).Methods(http.MethodGet)
}
