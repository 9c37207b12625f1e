// Command server runs the OSSU curriculum tracker HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/garyellow/ossu-tracker-go/internal/app"
	"github.com/garyellow/ossu-tracker-go/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		os.Exit(1)
	}
}
