package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"eventarr/internal/catalog"
	"eventarr/internal/config"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCatalog verifies the catalog file parses and validates.
func CheckCatalog(path string) Result {
	const name = "Catalog"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "catalog_file not configured"}
	}
	static, err := catalog.LoadStatic(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	events := static.List(context.Background())
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d events, %d profiles)", path, len(events), len(static.Profiles()))}
}

// CheckSourcesConfigured verifies at least one release source is enabled.
func CheckSourcesConfigured(cfg *config.Config) Result {
	const name = "Release sources"
	enabled := len(cfg.EnabledSources())
	if enabled == 0 {
		return Result{Name: name, Detail: "no enabled sources; searches will fail"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d enabled", enabled)}
}

// CheckSource asks a Torznab or Newznab endpoint for its capabilities.
func CheckSource(ctx context.Context, src config.Source) Result {
	name := "Source " + src.Name

	base := strings.TrimSpace(src.URL)
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	u, err := url.Parse(base)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api"
	}
	q := u.Query()
	q.Set("t", "caps")
	if src.APIKey != "" {
		q.Set("apikey", src.APIKey)
	}
	u.RawQuery = q.Encode()

	timeout := src.Timeout(5 * time.Second)
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("caps check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeRequestError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("caps check failed (%d)", resp.StatusCode)}
	}
}

func summarizeRequestError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "caps check timed out (source unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "caps check timed out (source unreachable)"
	}
	return fmt.Sprintf("caps check failed (%v)", err)
}
