// Package config provides fail-open loaders for environment overrides.
//
// Every loader returns a usable value. A malformed or out-of-range variable
// falls back to the default and produces a warning instead of an error, so a
// typo in the environment never prevents a crawl from starting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult is the outcome of reading one environment variable.
//
// Set reports whether the variable was present and non-empty. When
// FallbackApplied is true, Value holds the default and Warnings explains why.
type LoadResult[T any] struct {
	Value           T
	Set             bool
	Warnings        []string
	FallbackApplied bool
}

// load reads envKey and runs it through parse and validate. Either step
// failing yields the default with a single warning.
func load[T any](envKey string, def T, parse func(string) (T, error), validate func(T) error) LoadResult[T] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[T]{Value: def}
	}

	fallback := func(reason string) LoadResult[T] {
		return LoadResult[T]{
			Value:           def,
			Set:             true,
			Warnings:        []string{fmt.Sprintf("Invalid %s='%s': %s, falling back to default '%v'", envKey, raw, reason, def)},
			FallbackApplied: true,
		}
	}

	v, err := parse(raw)
	if err != nil {
		return fallback(err.Error())
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return fallback(err.Error())
		}
	}
	return LoadResult[T]{Value: v, Set: true}
}

// LoadEnvString returns the variable unchanged, or def when it is unset.
func LoadEnvString(envKey, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

// LoadEnvWithFallback loads a string and checks it with validator.
func LoadEnvWithFallback(envKey, def string, validator func(string) error) LoadResult[string] {
	return load(envKey, def, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration parses a Go duration string such as "90s" or "1h30m".
func LoadEnvDuration(envKey string, def time.Duration, validator func(time.Duration) error) LoadResult[time.Duration] {
	return load(envKey, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format")
		}
		return d, nil
	}, validator)
}

// LoadEnvInt parses a base-10 integer.
func LoadEnvInt(envKey string, def int, validator func(int) error) LoadResult[int] {
	return load(envKey, def, func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return n, nil
	}, validator)
}

// LoadEnvFloat parses a decimal number.
func LoadEnvFloat(envKey string, def float64, validator func(float64) error) LoadResult[float64] {
	return load(envKey, def, func(s string) (float64, error) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format")
		}
		return f, nil
	}, validator)
}

// LoadEnvBool accepts the spellings understood by strconv.ParseBool.
func LoadEnvBool(envKey string, def bool) LoadResult[bool] {
	return load(envKey, def, func(s string) (bool, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return b, nil
	}, nil)
}

// LoadEnvList splits a comma-separated variable, dropping blank items.
// A variable holding only separators is treated as an explicit empty list.
func LoadEnvList(envKey string, def []string) LoadResult[[]string] {
	return load(envKey, def, func(s string) ([]string, error) {
		out := []string{}
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}, nil)
}
