// Command healthcheck probes the local server and exits non-zero when the
// probe fails. Container runtimes without curl use it as their HEALTHCHECK
// binary; -ready switches the probe from liveness to readiness so deploy
// hooks can wait for warmup.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/config"
)

var readyFlag = flag.Bool("ready", false, "Probe /ready instead of /healthz")

func main() {
	flag.Parse()

	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = "10000"
	}

	path := "/healthz"
	if *readyFlag {
		path = "/ready"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%s%s", port, path), nil)
	if err != nil {
		os.Exit(1)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		os.Exit(1)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
