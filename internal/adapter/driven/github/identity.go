package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// VerifyToken checks token against GET /user and returns the identity it
// authenticates as. It uses a one-shot client so the check never depends on
// (or mutates) the session token used by the document calls.
func (c *Client) VerifyToken(ctx context.Context, token string) (*model.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tempClient := gh.NewClient(c.verifyHTTP).WithAuthToken(token)
	tempClient.BaseURL = c.gh.BaseURL

	user, resp, err := tempClient.Users.Get(ctx, "")
	logRateLimit(resp, "users.get", "")
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", classify(err))
	}

	return &model.Identity{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}
