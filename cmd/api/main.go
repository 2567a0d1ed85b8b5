package main

import (
	"log"

	"cvgenius-backend/internal/bootstrap"
	"cvgenius-backend/internal/shared/config"
	"cvgenius-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s (storage=%s)", addr, app.CVGateway.Mode())

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
