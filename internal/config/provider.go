// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects the configuration source. The zero value reads
	// config.cue from ConfigDir and falls back to defaults.
	LoadOptions struct {
		// ConfigFilePath is the --config flag: the file must exist and is
		// the only source read.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir.
		ConfigDirPath string
	}

	// Provider loads the CLI configuration. The CLI takes one so tests can
	// substitute a fixed configuration.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	fileProvider struct{}
)

// configDirOverride replaces the platform lookup in ConfigDir when set.
var configDirOverride string

// NewProvider returns the Provider reading CUE files through Load.
func NewProvider() Provider {
	return fileProvider{}
}

func (fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := Load(ctx, opts)
	return cfg, err
}

// SetConfigDirOverride makes ConfigDir return dir. Tests use it because
// os.UserHomeDir does not follow HOME on every platform.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears SetConfigDirOverride.
func Reset() {
	configDirOverride = ""
}
