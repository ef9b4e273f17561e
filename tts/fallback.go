package tts

import (
	"sync"

	"github.com/charmbracelet/log"
)

// FallbackPolicy decides whether a failed cloud request is retried on the
// system engine. Fallback is one-shot: it covers the failed utterance only
// and never changes the configured backend.
type FallbackPolicy struct {
	mu        sync.Mutex
	fallbacks int
}

// Allow reports whether err should be retried locally. Only rate limiting
// qualifies; credential and network failures are reported as they are.
func (p *FallbackPolicy) Allow(err error, local *LocalBackend) bool {
	if KindOf(err) != KindRateLimit {
		return false
	}
	if local == nil || !local.Available() {
		log.Warn("Azure rate limited and no system engine to fall back to", "err", err)
		return false
	}

	p.mu.Lock()
	p.fallbacks++
	n := p.fallbacks
	p.mu.Unlock()

	log.Warn("Azure rate limited, reading with the system engine", "fallbacks", n)
	return true
}

// Count returns how many utterances fell back so far.
func (p *FallbackPolicy) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fallbacks
}
