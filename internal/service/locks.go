package service

import (
	"sort"
	"sync"
)

// seasonLocks hands out one reader/writer gate per season id. A replay takes
// it exclusively (try-lock, so a second concurrent run over the same season is
// rejected instead of racing the first); single-match applies take it shared,
// which keeps them out of a replay's window without serializing them against
// each other. Unrelated seasons never contend.
type seasonLocks struct {
	mu    sync.Mutex
	gates map[string]*sync.RWMutex
}

func newSeasonLocks() *seasonLocks {
	return &seasonLocks{gates: make(map[string]*sync.RWMutex)}
}

func (l *seasonLocks) get(seasonID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	gate, ok := l.gates[seasonID]
	if !ok {
		gate = &sync.RWMutex{}
		l.gates[seasonID] = gate
	}
	return gate
}

// pairLocks serializes single-match confirmation on the pair of player rating
// rows it touches. Keys are locked in sorted order so two confirms sharing a
// player cannot deadlock.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *pairLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

func (l *pairLocks) lockPair(a, b string) func() {
	keys := []string{a, b}
	sort.Strings(keys)
	if keys[0] == keys[1] {
		m := l.get(keys[0])
		m.Lock()
		return m.Unlock
	}
	first, second := l.get(keys[0]), l.get(keys[1])
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
