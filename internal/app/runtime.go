package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

const testModeEnv = "VIALTRACK_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

// detectTestMode accepts any strconv.ParseBool truthy value.
func detectTestMode() {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testModeFlag.Store(on)
}

// InTestMode reports whether binaries should return before connecting to backing services.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode updates the cached flag after environment changes.
func RefreshTestMode() {
	detectTestMode()
}
