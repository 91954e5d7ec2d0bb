package t2d2

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

// Environment variables read by NewFromEnv.
const (
	EnvAPIURL      = "T2D2_API_URL"      // API root, defaults to DefaultBaseURL
	EnvAPIKey      = "T2D2_API_KEY"      // API key credential
	EnvEmail       = "T2D2_EMAIL"        // account email, used with EnvPassword
	EnvPassword    = "T2D2_PASSWORD"     // account password
	EnvAccessToken = "T2D2_ACCESS_TOKEN" // pre-issued bearer token
	EnvDebug       = "T2D2_DEBUG"        // parsed with strconv.ParseBool, enables debug logging
	EnvS3Endpoint  = "T2D2_S3_ENDPOINT"  // S3-compatible endpoint, such as the sandbox storage
)

// CredentialsFromEnv reads credentials from the T2D2_* environment variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		APIKey:      strings.TrimSpace(os.Getenv(EnvAPIKey)),
		Email:       strings.TrimSpace(os.Getenv(EnvEmail)),
		Password:    os.Getenv(EnvPassword),
		AccessToken: strings.TrimSpace(os.Getenv(EnvAccessToken)),
	}
}

// NewFromEnv initialises a client from T2D2_* environment variables. Options
// passed explicitly take precedence over the environment.
func NewFromEnv(ctx context.Context, opts ...Option) (*Client, error) {
	var envOpts []Option
	if u := strings.TrimSpace(os.Getenv(EnvAPIURL)); u != "" {
		envOpts = append(envOpts, WithBaseURL(u))
	}
	if raw := strings.TrimSpace(os.Getenv(EnvDebug)); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("t2d2: parse %s: %w", EnvDebug, err)
		}
		envOpts = append(envOpts, WithDebug(on))
	}
	if u := strings.TrimSpace(os.Getenv(EnvS3Endpoint)); u != "" {
		envOpts = append(envOpts, WithS3Config(storage.S3Config{Endpoint: u, PublicRead: true}))
	}
	return New(ctx, CredentialsFromEnv(), append(envOpts, opts...)...)
}
