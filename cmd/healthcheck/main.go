// Command healthcheck probes every downstream dependency (device API,
// language model, speech synthesis) and prints a human-readable report.
// Exits nonzero if any check fails.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"haptic/agent/internal/config"
	"haptic/agent/internal/health"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := health.CheckAll(ctx, cfg)
	fmt.Print(status.String())
	if !status.OK {
		os.Exit(1)
	}
}
