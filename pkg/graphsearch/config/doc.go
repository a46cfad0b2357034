/*
Package config reads search settings out of decoded YAML or JSON documents.

# Overview

A Config wraps the map produced by decoding a settings file and offers typed
accessors that fall back to a default when a key is missing or holds a value
of the wrong shape. Keys may be dotted paths into nested maps, so the same
file can carry settings for several components:

	search:
	  sample_count: 5
	  rng_seed: 42
	  per_node_timeout: 250ms

	cfg, err := config.FromFile("search.yaml")
	n := cfg.Int("search.sample_count", 3)          // 5
	seed := cfg.Uint64("search.rng_seed", 0)        // 42
	d := cfg.Duration("search.per_node_timeout", 0) // 250ms

Sub narrows a Config to one nested section:

	search := cfg.Sub("search")
	n = search.Int("sample_count", 3)

# Type Coercion

Duration accepts a time.ParseDuration string, a time.Duration, or a number
of seconds. Int and Uint64 accept any integer type, floats without a
fractional part and decimal strings, which keeps 64-bit seeds exact in
JSON. Negative values are never converted to Uint64. Bool and Float also
parse strings.

# Variables

Expand substitutes ${NAME} references in string values, typically from
the environment:

	cfg, err = cfg.Expand(config.Env, config.MissingError)

# Thread Safety

Config is safe for concurrent reads. The wrapped map must not be modified
after New.
*/
package config
