// Package guard flips the binaries into test mode when blank-imported from a
// test, so calling main() never dials Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FLEETLEDGER_TEST_MODE") == "" {
			_ = os.Setenv("FLEETLEDGER_TEST_MODE", "1")
		}
	})
}
