// Package guard flips the process into test mode so binaries and
// background workers skip their runtime side effects when imported by tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LAYERWORKS_TEST_MODE") == "" {
			_ = os.Setenv("LAYERWORKS_TEST_MODE", "1")
		}
	})
}
