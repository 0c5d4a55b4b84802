package settings

import (
	"sync"
	"time"
)

type Arguments struct {
	// How long Acquire waits for sessions on the previously active
	// company to drain before giving up.
	AcquireTimeout time.Duration

	// Sleep interval between polls of the active session count.
	PollInterval time.Duration

	// Environment variables consulted when a company is registered
	// without explicit credentials.
	UsernameEnv string
	PasswordEnv string

	// Path to a BSON snapshot loaded by the embedded driver, if any.
	DataFile string

	// Strongly verbose logging
	Verbose bool

	Debug bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the global settings instance, creating it with
// defaults on first use.
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{
			AcquireTimeout: 60 * time.Second,
			PollInterval:   100 * time.Millisecond,
			UsernameEnv:    "VISMA_USERNAME",
			PasswordEnv:    "VISMA_PASSWORD",
		}
	})
	return instance
}
