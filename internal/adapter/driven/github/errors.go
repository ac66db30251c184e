package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// classify maps a go-github error onto the model taxonomy. The original error
// stays in the chain for logging.
func classify(err error) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	}
	// The transport limiter answers for an exhausted quota without a response.
	var reachedErr *github_primary_ratelimit.RateLimitReachedError
	if errors.As(err, &reachedErr) {
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	}

	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return err
	}

	resp := ghErr.Response
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", model.ErrAuthenticationExpired, err)
	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %w", model.ErrPermissionDenied, err)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", model.ErrRateLimited, err)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", model.ErrNotFound, err)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", model.ErrTransientServer, err)
	default:
		return err
	}
}

// classifyWrite extends classify with the responses GitHub uses to reject a
// contents write against a stale or missing sha: 409 on a mismatch, 422 when
// a sha is required but absent or malformed.
func classifyWrite(err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", model.ErrConflictWriteRejected, err)
		case http.StatusUnprocessableEntity:
			if strings.Contains(strings.ToLower(ghErr.Message), "sha") {
				return fmt.Errorf("%w: %w", model.ErrConflictWriteRejected, err)
			}
		}
	}
	return classify(err)
}
