package config

import (
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/retry"
)

// Validate rejects configurations the daemon cannot run with. Defaults
// must already be applied.
func (c Config) Validate() error {
	switch c.Persistence.Backend {
	case "memory":
	case "file":
		if c.Persistence.Enabled && c.Persistence.Path == "" {
			return ferrors.ConfigError("file persistence requires a path").Build()
		}
	case "nats":
		if c.Persistence.Enabled && c.Persistence.NATSURL == "" {
			return ferrors.ConfigError("nats persistence requires nats_url").Build()
		}
	default:
		return ferrors.ConfigError("unknown persistence backend").
			WithContext("backend", c.Persistence.Backend).
			Build()
	}

	if c.Sync.Enabled && c.Sync.Endpoint == "" {
		return ferrors.ConfigError("sync requires an endpoint").Build()
	}
	// Checked against the raw mode: NewPolicy falls back to the default
	// mode, so a policy built from a typo would always validate.
	switch retry.BackoffMode(c.Sync.Backoff.Mode) {
	case retry.BackoffFixed, retry.BackoffLinear, retry.BackoffExponential:
	default:
		return ferrors.ConfigError("unknown sync backoff mode").
			WithContext("mode", c.Sync.Backoff.Mode).
			Build()
	}
	if err := c.Sync.BackoffPolicy().Validate(); err != nil {
		return ferrors.ConfigError("invalid sync backoff").
			WithContext("mode", c.Sync.Backoff.Mode).
			WithCause(err).
			Build()
	}

	if c.Realtime.Enabled && c.Realtime.NATSURL == "" {
		return ferrors.ConfigError("realtime requires nats_url").Build()
	}

	return nil
}
