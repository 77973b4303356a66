/*
Package config provides typed access to loosely structured settings.

# Overview

Settings arrive from YAML or JSON files and from environment variables.
Config wraps the decoded map and returns typed values, falling back to a
default whenever a key is missing or its value cannot be converted:

	cfg, err := config.FromFile("eventseq.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	capacity := cfg.Int("initial_capacity", 10240)
	interests := cfg.StringSlice("interests", nil)
	retry := cfg.Sub("delivery")
	backoff := retry.Duration("backoff", 50*time.Millisecond)

# Layering

Environment overrides are read with FromEnv and layered with Merge, later
sources winning:

	cfg = cfg.Merge(config.FromEnv("EVENTSEQ", os.Environ()))

EVENTSEQ_MAILBOX_SIZE=512 becomes the key "mailbox_size". Environment values
are strings, so the numeric and boolean accessors also parse strings, and
StringSlice splits comma-separated strings.

# Thread Safety

Config is safe for concurrent reads. Merge returns a new Config and never
modifies either input.
*/
package config
