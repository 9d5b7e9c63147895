// Package config provides configuration structures and utilities for redirscan.
// It defines the per-hop timeout bounds, enrichment toggles, export selection
// and the optional YAML file carrying per-host request settings.
package config
