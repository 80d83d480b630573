package telemetry

import (
	"os"
	"sync"
)

var (
	cfgMu          sync.RWMutex
	observeEnabled bool
	artifactsDir   string
)

func init() {
	// Startup defaults; binaries may override via Configure.
	observeEnabled = os.Getenv("AGT_OBSERVE_JSON") == "1"
	artifactsDir = os.Getenv("AGT_ARTIFACTS_DIR")
}

// Configure sets event emission and the directory events.jsonl is written to.
// An empty dir keeps the default ".agent".
func Configure(observe bool, dir string) {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	observeEnabled = observe
	artifactsDir = dir
}

// ObserveEnabled reports whether JSONL emission is on.
func ObserveEnabled() bool {
	// Allow tests to enable mid-run via env override.
	if os.Getenv("AGT_OBSERVE_JSON") == "1" {
		return true
	}
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return observeEnabled
}

// ArtifactsDir returns the directory holding events.jsonl.
func ArtifactsDir() string {
	if v := os.Getenv("AGT_ARTIFACTS_DIR"); v != "" {
		return v
	}
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if artifactsDir != "" {
		return artifactsDir
	}
	return ".agent"
}
