// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/browserbox/browserbox/pkg/types"
)

const (
	// EnvPort is the platform-assigned listen port.
	EnvPort = "PORT"
	// EnvDontWriteBytecode stops the interpreter from writing bytecode caches.
	EnvDontWriteBytecode = "PYTHONDONTWRITEBYTECODE"
	// EnvUnbuffered disables interpreter output buffering.
	EnvUnbuffered = "PYTHONUNBUFFERED"

	// ListenHost is the address the server binds: every interface of the container.
	ListenHost = "0.0.0.0"
)

// Runtime is the in-container configuration, read once at process start
// and passed explicitly to the launcher.
type Runtime struct {
	Port types.Port
	Host string
	// DontWriteBytecode and Unbuffered mirror the interpreter switches. They
	// are on unless the variable is present and empty.
	DontWriteBytecode bool
	Unbuffered        bool
}

// DefaultRuntime returns the runtime configuration of an empty environment.
func DefaultRuntime() Runtime {
	return Runtime{
		Port:              types.DefaultPort,
		Host:              ListenHost,
		DontWriteBytecode: true,
		Unbuffered:        true,
	}
}

// LoadRuntime reads the runtime configuration from the process environment.
// An unset or empty PORT means types.DefaultPort. A PORT that is set but not a
// number in 1..65535 is an error wrapping types.ErrInvalidPort: the
// launcher never falls back to another port.
func LoadRuntime() (Runtime, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for key, env := range map[string]string{
		"port":                EnvPort,
		"dont_write_bytecode": EnvDontWriteBytecode,
		"unbuffered":          EnvUnbuffered,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return Runtime{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	rt := DefaultRuntime()

	if raw := v.GetString("port"); raw != "" {
		port, err := types.ParsePort(raw)
		if err != nil {
			return Runtime{}, fmt.Errorf("%s: %w", EnvPort, err)
		}
		rt.Port = port
	}
	if v.IsSet("dont_write_bytecode") {
		rt.DontWriteBytecode = v.GetString("dont_write_bytecode") != ""
	}
	if v.IsSet("unbuffered") {
		rt.Unbuffered = v.GetString("unbuffered") != ""
	}

	return rt, nil
}

// Addr returns host:port.
func (r Runtime) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Environ returns the variables the launcher exports to the server process.
func (r Runtime) Environ() []string {
	env := []string{EnvPort + "=" + r.Port.String()}
	if r.DontWriteBytecode {
		env = append(env, EnvDontWriteBytecode+"=1")
	}
	if r.Unbuffered {
		env = append(env, EnvUnbuffered+"=1")
	}
	return env
}
