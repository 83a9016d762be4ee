// Package config resolves process-wide settings from the environment, with
// an optional .env file loaded first — the same godotenv-then-continue
// pattern the teacher's cmd/tarsy entrypoint uses, adapted to Operator's
// small, flat env-var surface (spec.md §6.6) instead of a YAML chain config.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/operator/pkg/agent"
	"github.com/codeready-toolchain/operator/pkg/errtypes"
)

// Config holds every setting resolved from the environment.
type Config struct {
	DBPath         string
	AnthropicKey   string
	Safety         agent.SafetyMode
	Approval       agent.ApprovalMode
	PollInterval   time.Duration
	SessionTimeout time.Duration
}

// Load reads a .env file if present (missing file is not an error — the
// teacher's main.go logs a warning and continues so container deployments
// without a .env still work) and resolves Config from the process
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file, continuing with process environment", "error", err)
	}

	safety, err := agent.ParseSafetyMode(getenv("OPERATOR_SAFETY_MODE", string(agent.SafetyObserve)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errtypes.ErrFatalConfig, err)
	}
	approval, err := agent.ParseApprovalMode(getenv("OPERATOR_APPROVAL_MODE", "false"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errtypes.ErrFatalConfig, err)
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" && safety == agent.SafetyExecute {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required to run the agent loop", errtypes.ErrFatalConfig)
	}

	return &Config{
		DBPath:         getenv("OPERATOR_DB_PATH", DefaultDBPath()),
		AnthropicKey:   apiKey,
		Safety:         safety,
		Approval:       approval,
		PollInterval:   durationEnv("OPERATOR_POLL_INTERVAL", 5*time.Second),
		SessionTimeout: durationEnv("OPERATOR_SESSION_TIMEOUT", 30*time.Minute),
	}, nil
}

// DefaultDBPath is ~/.operator/operator.db (spec.md §6.4), falling back to
// a relative path if the home directory can't be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "operator.db"
	}
	return filepath.Join(home, ".operator", "operator.db")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
