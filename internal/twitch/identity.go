package twitch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nicklaw5/helix/v2"

	apperrors "github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/errors"
)

// HelixResolver resolves channel logins to Twitch user ids via the Helix API.
type HelixResolver struct {
	client *helix.Client
}

// NewHelixResolver creates a resolver with an app access token. Returns nil
// and no error when clientID is empty; callers treat a nil resolver as
// "identity lookup unavailable".
func NewHelixResolver(clientID, accessToken string) (*HelixResolver, error) {
	if clientID == "" {
		return nil, nil
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: accessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	return &HelixResolver{client: client}, nil
}

// ResolveUserID returns the numeric Twitch user id for a login name.
func (r *HelixResolver) ResolveUserID(ctx context.Context, login string) (string, error) {
	resp, err := r.client.GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		return "", apperrors.ExternalError("helix user lookup failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.ExternalError(
			fmt.Sprintf("helix user lookup returned status %d: %s", resp.StatusCode, resp.ErrorMessage), nil)
	}
	if len(resp.Data.Users) == 0 {
		return "", apperrors.NotFoundError(fmt.Sprintf("channel %q not found", login))
	}
	return resp.Data.Users[0].ID, nil
}

// NoopResolver stands in when no Twitch credentials are configured. Every
// lookup fails, so channel emote fetches are skipped with a warning and only
// global emotes are available.
type NoopResolver struct{}

// ResolveUserID always reports the lookup as unavailable.
func (NoopResolver) ResolveUserID(ctx context.Context, login string) (string, error) {
	return "", apperrors.UnavailableError("identity lookup disabled: no Twitch credentials configured")
}
