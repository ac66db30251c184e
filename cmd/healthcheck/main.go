// Command healthcheck probes the policypanel health endpoint. It is the
// container HEALTHCHECK, so it has no dependencies beyond the binary.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultAddr = "127.0.0.1:8080"

func main() {
	os.Exit(check(os.Getenv("POLICYPANEL_LISTEN_ADDR"), os.Stderr))
}

// check returns 0 when the service reports ok, 1 otherwise. The reason for a
// failure is written to errOut.
func check(rawAddr string, errOut io.Writer) int {
	url := fmt.Sprintf("http://%s/api/v1/health", normalizeAddr(rawAddr))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(errOut, "unhealthy: http %d, status %q, database %q\n", resp.StatusCode, body.Status, body.Database)
		return 1
	}
	return 0
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address. Docker containers bind 0.0.0.0 but the healthcheck runs
// inside the same container, so loopback is reachable and more correct.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
