// Package config loads, normalizes, and validates quill configuration.
//
// Configuration lives in a TOML file (default ~/.config/quill/config.toml,
// or quill.toml in the working directory). Load applies defaults first,
// then file values, then environment overrides for secrets, and finally
// validates the result. All path fields are expanded before use.
package config
