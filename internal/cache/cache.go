// Package cache stores encoded snapshots of the order table between process
// restarts or across replicas.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pierrec/lz4/v4"
)

// ErrMiss is returned by Get when key holds no live entry.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Name() string
	Close() error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Name() string { return "none" }

func (Noop) Close() error { return nil }

// Encode writes v as JSON into an lz4 frame. JSON keeps a pointer to zero
// distinct from a nil pointer, so a 0 rating survives a round trip.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode into v.
func Decode(data []byte, v any) error {
	zr := lz4.NewReader(bytes.NewReader(data))
	if err := json.NewDecoder(zr).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
