package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"panelchat/internal/auth"
	"panelchat/internal/client"
	"panelchat/internal/config"
	"panelchat/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	// Decode identity from the bearer token
	identity, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		logger.Fatal("Invalid credential: %v", err)
	}
	logger.Info("Starting realtime client for user %d (%s)", identity.UserID, identity.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.New(cfg, identity)
	c.SetOnSessionInvalid(func() {
		logger.Error("Session invalidated by server, shutting down")
		cancel()
	})
	c.SetOnServerError(func(msg string) {
		logger.Error("Server reported: %s", msg)
	})

	// Stop on interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("Client shutting down...")
		cancel()
	}()

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Client stopped: %v", err)
	}
}
