// Package testing puts the binaries in test mode when a test binary imports
// it, and fills in secrets that LoadConfig requires.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
}

var setup = sync.OnceFunc(func() {
	_ = os.Setenv("KUMA_TEST_MODE", "true")
	for key, value := range testEnv {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
})

func init() { setup() }

func TestMain(m *stdtesting.M) {
	setup()
	os.Exit(m.Run())
}
