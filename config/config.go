// Package config handles credential and application configuration loaded from
// the process environment. Credentials are read once at startup and treated as
// immutable for the process lifetime.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// DefaultRegion is used when AWS_DEFAULT_REGION is not set.
const DefaultRegion = "us-east-1"

// defaultInvokeTimeout bounds a single inference round trip when
// SAGEMAKER_INVOKE_TIMEOUT is not set.
const defaultInvokeTimeout = 30 * time.Second

// ErrCredentialsNotConfigured is returned when the AWS credential triple is
// missing or incomplete. This is a configuration problem, never retried.
var ErrCredentialsNotConfigured = errors.New("aws credentials are not configured")

// Credentials is an immutable snapshot of the AWS credential triple.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

// Config holds all application configuration read from the environment.
type Config struct {
	AccessKeyID     string        // AWS_ACCESS_KEY_ID
	SecretAccessKey string        // AWS_SECRET_ACCESS_KEY
	Region          string        // AWS_DEFAULT_REGION, defaults to us-east-1
	AccountID       string        // AWS_ACCOUNT_ID (optional, diagnostics only)
	EndpointName    string        // SAGEMAKER_ENDPOINT_NAME
	HistoryTable    string        // PREDICTION_HISTORY_TABLE (optional)
	InvokeTimeout   time.Duration // SAGEMAKER_INVOKE_TIMEOUT (optional)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; a missing .env is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		Region:          envOrDefault("AWS_DEFAULT_REGION", DefaultRegion),
		AccountID:       os.Getenv("AWS_ACCOUNT_ID"),
		EndpointName:    os.Getenv("SAGEMAKER_ENDPOINT_NAME"),
		HistoryTable:    os.Getenv("PREDICTION_HISTORY_TABLE"),
		InvokeTimeout:   envDuration("SAGEMAKER_INVOKE_TIMEOUT", defaultInvokeTimeout),
	}
}

// CredentialsValid reports whether the access key, secret key, and region are
// all present and non-empty. Pure local check, never a network call.
func (c *Config) CredentialsValid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Region != ""
}

// Credentials returns the immutable credential snapshot, failing when the
// triple is incomplete.
func (c *Config) Credentials() (Credentials, error) {
	if !c.CredentialsValid() {
		return Credentials{}, fmt.Errorf(
			"%w: set AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, and AWS_DEFAULT_REGION in the environment or .env file",
			ErrCredentialsNotConfigured)
	}
	return Credentials{
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Region:          c.Region,
	}, nil
}

// Validate ensures the configuration is usable for making predictions.
func (c *Config) Validate() error {
	if _, err := c.Credentials(); err != nil {
		return err
	}

	if c.InvokeTimeout < time.Second {
		return fmt.Errorf("invoke timeout must be at least 1 second")
	}

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
