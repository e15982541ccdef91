package database

import (
	"sync"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB

	// Serializes booking attempts per doctor/date so the overlap check and
	// the insert run as one unit. Interval overlap cannot be expressed as a
	// unique index, so the check-then-insert runs under a keyed lock.
	slots keyMutex
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// keyMutex hands out one mutex per key. Entries are never evicted; the key
// space (doctor/date) is small and bounded.
type keyMutex struct {
	locks sync.Map
}

func (k *keyMutex) Lock(key string) *sync.Mutex {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}
