package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountLocks(t *testing.T) {
	t.Run("serializes holders of the same account", func(t *testing.T) {
		locks := NewAccountLocks()
		counter := 0
		var wg sync.WaitGroup

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("acct-1")
				defer unlock()
				v := counter
				v++
				counter = v
			}()
		}
		wg.Wait()

		assert.Equal(t, 50, counter)
		assert.Zero(t, locks.held())
	})

	t.Run("different accounts do not block each other", func(t *testing.T) {
		locks := NewAccountLocks()

		unlockA := locks.Lock("a")
		unlockB := locks.Lock("b")
		assert.Equal(t, 2, locks.held())

		unlockA()
		unlockB()
		assert.Zero(t, locks.held())
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		locks := NewAccountLocks()

		unlock := locks.Lock("a")
		unlock()
		unlock()

		assert.Zero(t, locks.held())
		relock := locks.Lock("a")
		relock()
	})
}
