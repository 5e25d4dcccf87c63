package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// TestModeEnv, when truthy, makes the binaries return before touching
// Postgres, Redis or the network.
const TestModeEnv = "KUMA_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
