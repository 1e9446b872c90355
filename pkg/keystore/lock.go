package keystore

import "sync"

// keyedMutex holds one mutex per wallet, for as long as it is in use.
type keyedMutex struct {
	mtx   sync.Mutex
	locks map[WalletID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[WalletID]*refMutex)}
}

// Lock acquires the mutex of id, and returns the function releasing it.
func (k *keyedMutex) Lock(id WalletID) (unlock func()) {
	k.mtx.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mtx.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mtx.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mtx.Unlock()
	}
}
