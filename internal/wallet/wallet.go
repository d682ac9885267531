// Package wallet selects deposit addresses and validates withdrawal addresses.
package wallet

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"invest-bot-go/internal/models"
)

var (
	ErrNoWallets     = errors.New("no wallets configured")
	ErrInvalidWallet = errors.New("invalid wallet address")
)

// Rotation hands out deposit addresses round-robin per crypto kind. It is
// safe for concurrent use.
type Rotation struct {
	mu    sync.Mutex
	pools map[models.CryptoKind][]string
	next  map[models.CryptoKind]int
}

func NewRotation(pools map[models.CryptoKind][]string) *Rotation {
	r := &Rotation{
		pools: make(map[models.CryptoKind][]string, len(pools)),
		next:  make(map[models.CryptoKind]int, len(pools)),
	}
	for kind, addrs := range pools {
		r.pools[kind] = append([]string(nil), addrs...)
	}
	return r
}

// Next returns the next address for kind.
func (r *Rotation) Next(kind models.CryptoKind) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool := r.pools[kind]
	if len(pool) == 0 {
		return "", fmt.Errorf("%w for %s", ErrNoWallets, kind)
	}
	i := r.next[kind]
	r.next[kind] = (i + 1) % len(pool)
	return pool[i], nil
}

// Contains reports whether address belongs to the pool for kind.
func (r *Rotation) Contains(kind models.CryptoKind, address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.pools[kind] {
		if a == address {
			return true
		}
	}
	return false
}

// Profile describes the accepted withdrawal address format.
type Profile struct {
	Prefix string
	Length int
}

// Validate trims address and checks it against the profile. Only
// alphanumeric characters are accepted.
func (p Profile) Validate(address string) (string, error) {
	address = strings.TrimSpace(address)
	if len(address) != p.Length {
		return "", fmt.Errorf("%w: expected %d characters, got %d", ErrInvalidWallet, p.Length, len(address))
	}
	if !strings.HasPrefix(address, p.Prefix) {
		return "", fmt.Errorf("%w: must start with %q", ErrInvalidWallet, p.Prefix)
	}
	for _, c := range address {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return "", fmt.Errorf("%w: unexpected character %q", ErrInvalidWallet, c)
		}
	}
	return address, nil
}

// Describe renders the profile for user prompts.
func (p Profile) Describe() string {
	return fmt.Sprintf("%d characters starting with %q", p.Length, p.Prefix)
}
