package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// env reads typed values from the process environment. Unset keys fall
// back to their default; malformed values are collected so New can
// report every bad key at once instead of silently using the default.
type env struct {
	errs []error
}

func (e *env) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (e *env) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *env) String(key, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return def
}

func (e *env) Int(key string, def int) int {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, errors.New("not an integer"))
		return def
	}
	return v
}

func (e *env) Bool(key string, def bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, errors.New("not a boolean"))
		return def
	}
	return v
}

func (e *env) Duration(key string, def time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, errors.New("not a duration"))
		return def
	}
	return v
}

// List splits a comma separated value, dropping blanks.
func (e *env) List(key string, def []string) []string {
	value, ok := e.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e *env) Err() error {
	return errors.Join(e.errs...)
}

func lower(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}
