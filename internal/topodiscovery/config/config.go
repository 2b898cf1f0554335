// Copyright (c) 2025 The Jaeger Authors.
// SPDX-License-Identifier: Apache-2.0

// Package config holds the pure, side-effect-free values that parameterise
// every other component: poll period, skew window, staleness window, and
// the initial lookback applied when no cursor has been persisted yet. It
// carries no flag-parsing logic; that lives in cmd/jaeger-discovery/app,
// which builds a Config from cobra/viper-bound flags.
package config

import "time"

const (
	DefaultPollPeriod      = 60 * time.Second
	DefaultSkewWindow      = 5 * time.Minute
	DefaultStalenessWindow = 7 * 24 * time.Hour
	DefaultLookback        = 7 * 24 * time.Hour
)

// Config is the Clock & Config leaf component of spec.md §2.1.
type Config struct {
	// PollPeriod is the target interval between discovery ticks.
	PollPeriod time.Duration
	// SkewWindow bounds how long an unresolved trace fragment (a
	// placeholder SpanInfo awaiting its real span) is retained.
	SkewWindow time.Duration
	// StalenessWindow bounds how long a service/operation is retained
	// after its last observed span.
	StalenessWindow time.Duration
	// Lookback is the query window used on the very first tick, when no
	// cursor has yet been persisted (spec.md §4.2: "now - 7 days").
	Lookback time.Duration
}

// Validate checks the configuration is internally consistent, returning a
// *errs.ConfigError-shaped message via a plain error (the cmd layer wraps
// it as errs.ConfigError so the exit-code mapping of §6 applies).
func (c Config) Validate() error {
	if c.PollPeriod <= 0 {
		return errInvalid("poll period must be positive")
	}
	if c.SkewWindow <= 0 {
		return errInvalid("skew window must be positive")
	}
	if c.StalenessWindow <= 0 {
		return errInvalid("staleness window must be positive")
	}
	if c.Lookback <= 0 {
		return errInvalid("lookback must be positive")
	}
	return nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

func errInvalid(msg string) error { return validationError(msg) }

// Default returns the Config populated with the spec's default thresholds.
func Default() Config {
	return Config{
		PollPeriod:      DefaultPollPeriod,
		SkewWindow:      DefaultSkewWindow,
		StalenessWindow: DefaultStalenessWindow,
		Lookback:        DefaultLookback,
	}
}
