// SPDX-License-Identifier: MPL-2.0

// Package config handles browserbox configuration.
//
// Two layers live here. The CLI configuration is read with Viper from
// config.cue in the platform config directory ($XDG_CONFIG_HOME/browserbox,
// ~/Library/Application Support/browserbox or %APPDATA%\browserbox) and
// validated against the embedded CUE schema (config_schema.cue). The
// runtime configuration (Runtime) is read once from the process environment
// by the launcher inside the image.
package config
