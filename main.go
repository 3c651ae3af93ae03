package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/core"
)

func main() {
	// Secrets come from the environment; a local .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal("Error loading config:", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := core.Setup(cfg)
	if err != nil {
		log.Fatal("Error setting up services:", err)
	}

	if err := registry.StartAll(ctx); err != nil {
		log.Fatal("Error starting services:", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, stopping services...")
	cancel()
	registry.StopAll()
}
