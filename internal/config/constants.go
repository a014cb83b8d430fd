package config

import "time"

const (
	// Graceful shutdown window for the webhook server
	ShutdownTimeout = 10 * time.Second

	// Webhook server timeouts
	ReadTimeout  = 10 * time.Second
	WriteTimeout = 10 * time.Second
)
