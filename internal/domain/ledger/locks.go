package ledger

import "sync"

// AccountLocks serializes writers per account within one process.
// Idle locks are dropped so the map does not grow with every account seen.
type AccountLocks struct {
	mapMu sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewAccountLocks creates an empty lock table
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*accountLock)}
}

// Lock blocks until the account is free and returns the matching unlock func
func (l *AccountLocks) Lock(accountID string) (unlock func()) {
	l.mapMu.Lock()
	al, ok := l.locks[accountID]
	if !ok {
		al = &accountLock{}
		l.locks[accountID] = al
	}
	al.refs++
	l.mapMu.Unlock()

	al.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			al.mu.Unlock()

			l.mapMu.Lock()
			al.refs--
			if al.refs == 0 {
				delete(l.locks, accountID)
			}
			l.mapMu.Unlock()
		})
	}
}

// held returns the number of accounts with a holder or waiter
func (l *AccountLocks) held() int {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()
	return len(l.locks)
}
