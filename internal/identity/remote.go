package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// userPath is the auth service endpoint that resolves an access token
const userPath = "/auth/v1/user"

// RemoteConfig configures the hosted auth service client
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// remoteUser is the subset of the auth service user object we read
type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

// RemoteVerifier resolves tokens by calling the hosted auth service
type RemoteVerifier struct {
	client *resty.Client
}

// NewRemoteVerifier creates a verifier for the auth service at cfg.BaseURL.
// Connection errors and 5xx responses are retried; rejections are not.
func NewRemoteVerifier(cfg RemoteConfig) *RemoteVerifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &RemoteVerifier{client: client}
}

// Verify asks the auth service who owns token
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	var user remoteUser
	resp, err := v.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		Get(userPath)
	if err != nil {
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.IsError():
		return nil, fmt.Errorf("identity provider returned %d", resp.StatusCode())
	case user.ID == "":
		return nil, errors.Join(ErrInvalidToken, errors.New("provider returned no user"))
	}

	return &Principal{
		Subject:      user.ID,
		Email:        user.Email,
		UserMetadata: user.UserMetadata,
		AppMetadata:  user.AppMetadata,
	}, nil
}
