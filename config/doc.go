// Package config loads, normalizes, and validates clave configuration.
//
// Settings come from a TOML file (an explicit path, ~/.config/clave/config.toml,
// or ./clave.toml in that order), then CLAVE_* environment variables override
// individual fields. Defaults apply for anything left unset, so a missing
// config file is not an error.
package config
