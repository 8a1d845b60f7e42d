// Package config loads and validates the courier TOML configuration.
//
// Loading follows a fixed pipeline: seed defaults, overlay the config file
// when one exists, normalize paths, then validate. A missing config file is
// not an error; defaults describe a working local daemon.
package config
