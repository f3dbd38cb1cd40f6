package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable marks failures of the RPC node or one of the HTTP APIs.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrCacheUnavailable marks failures of a cache or score store backend.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrRefreshTimeout is returned when a synchronous refresh exceeds its bound.
	ErrRefreshTimeout = errors.New("refresh timed out")
	// ErrNoDataAvailable means a refresh produced nothing to serve.
	ErrNoDataAvailable = errors.New("no data available")
	ErrInvalidAddress  = errors.New("invalid address")
)

var (
	ErrNoTokens     = fmt.Errorf("no tokens found: %w", ErrNoDataAvailable)
	ErrNoMarketData = fmt.Errorf("no market data available: %w", ErrNoDataAvailable)
)
