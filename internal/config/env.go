// Package config provides centralized configuration management so the rest
// of the codebase never calls os.Getenv directly.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// DitLoopEnv holds all DitLoop environment variables.
type DitLoopEnv struct {
	// Workspace overrides the working directory as the workspace root
	// (DITLOOP_WORKSPACE)
	Workspace string

	// Provider is the provider name to use (DITLOOP_PROVIDER)
	Provider string

	// Model is the default model (DITLOOP_MODEL)
	Model string

	// MaxTokens caps provider responses (DITLOOP_MAX_TOKENS, unused when 0)
	MaxTokens int

	// CommandTimeout bounds shell command execution (DITLOOP_COMMAND_TIMEOUT,
	// e.g. "45s")
	CommandTimeout time.Duration

	// AutoApprove skips the interactive prompt and approves every action
	// (DITLOOP_AUTO_APPROVE=1). Intended for CI against trusted tasks.
	AutoApprove bool

	// AnthropicKey is the Anthropic API key (ANTHROPIC_API_KEY)
	AnthropicKey string

	// OpenAIKey is the OpenAI API key (OPENAI_API_KEY)
	OpenAIKey string
}

var (
	env     *DitLoopEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration. Thread-safe, loads
// once on first call.
func Env() *DitLoopEnv {
	envOnce.Do(func() {
		env = &DitLoopEnv{
			Workspace:      os.Getenv("DITLOOP_WORKSPACE"),
			Provider:       getEnvDefault("DITLOOP_PROVIDER", "anthropic"),
			Model:          os.Getenv("DITLOOP_MODEL"),
			MaxTokens:      getEnvInt("DITLOOP_MAX_TOKENS"),
			CommandTimeout: getEnvDuration("DITLOOP_COMMAND_TIMEOUT"),
			AutoApprove:    os.Getenv("DITLOOP_AUTO_APPROVE") == "1",
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return n
}

func getEnvDuration(key string) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return d
}

// Paths holds standard DitLoop directory paths.
type Paths struct {
	// Home is the DitLoop home directory (~/.ditloop)
	Home string

	// Data is the data directory holding the session database
	// (~/.ditloop/data)
	Data string

	// Tasks is the default task file directory (~/.ditloop/tasks)
	Tasks string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		root := filepath.Join(home, ".ditloop")

		paths = &Paths{
			Home:  root,
			Data:  filepath.Join(root, "data"),
			Tasks: filepath.Join(root, "tasks"),
		}
	})
	return paths
}

// Path returns a path under the DitLoop home directory.
func Path(parts ...string) string {
	p := GetPaths()
	allParts := append([]string{p.Home}, parts...)
	return filepath.Join(allParts...)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
