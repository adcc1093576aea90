// Package main implements the entry point for the PlanForge API server,
// which accepts learning-plan generation requests, runs them through the
// durable job queue and the LLM orchestrator, and serves plan status.
package main

import (
	"context"
	"log"
)

func main() {
	ctx := context.Background()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
