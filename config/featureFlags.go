package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// OfflineModeEnabled gates the whole local-cache sync machinery. When off,
// the service acts as a plain API over the local store and never talks to
// the central change service.
//
// Set via env:
// - OFFLINE_MODE_ENABLED=true (default true)
func OfflineModeEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("OFFLINE_MODE_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SyncInterval is the period of the background pull pass.
//
// Set via env:
// - SYNC_INTERVAL_SECONDS (default 300)
func SyncInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("SYNC_INTERVAL_SECONDS"))
	if v == "" {
		return 5 * time.Minute
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(n) * time.Second
}
