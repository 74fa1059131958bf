package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TOKOBERAS_TEST_MODE") == "" {
			_ = os.Setenv("TOKOBERAS_TEST_MODE", "1")
		}
	})
}
