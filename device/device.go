// Package device generates and persists the per-install device identifier
// sent as X-Device-ID and in the login payload.
package device

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/portalAuth/tokenstore"
)

const suffixLength = 13

// DefaultPlatform is used when no platform name is configured.
func DefaultPlatform() string { return runtime.GOOS }

// Generate returns "<platform>-<unix millis>-<13 base36 chars>".
func Generate(platform string, now time.Time) (string, error) {
	if platform == "" {
		platform = DefaultPlatform()
	}
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("device: random source: %w", err)
	}
	suffix := new(big.Int).SetBytes(u[:]).Text(36)
	for len(suffix) < suffixLength {
		suffix = "0" + suffix
	}
	return platform + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix[:suffixLength], nil
}

// Parsed is the decomposed form of a device id.
type Parsed struct {
	Platform  string
	CreatedAt time.Time
	Suffix    string
}

// Parse splits id. Platforms may themselves contain dashes; the last two
// fields are always the timestamp and the suffix.
func Parse(id string) (Parsed, bool) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return Parsed{}, false
	}
	suffix := id[i+1:]
	rest := id[:i]
	j := strings.LastIndexByte(rest, '-')
	if j <= 0 {
		return Parsed{}, false
	}
	ms, err := strconv.ParseInt(rest[j+1:], 10, 64)
	if err != nil || ms < 0 {
		return Parsed{}, false
	}
	return Parsed{Platform: rest[:j], CreatedAt: time.UnixMilli(ms), Suffix: suffix}, true
}

// Resolver loads the device id from the store or generates and persists one.
// It is safe for concurrent use and returns the same id on every call until
// the store entry is cleared.
type Resolver struct {
	store    *tokenstore.Store
	platform string
	now      func() time.Time

	mu sync.Mutex
}

// NewResolver returns a Resolver over store.
func NewResolver(store *tokenstore.Store, platform string, now func() time.Time) *Resolver {
	if platform == "" {
		platform = DefaultPlatform()
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{store: store, platform: platform, now: now}
}

// Platform returns the configured platform name.
func (r *Resolver) Platform() string { return r.platform }

// Current returns the persisted id without generating one.
func (r *Resolver) Current(ctx context.Context) (string, bool) {
	return r.store.Get(ctx, tokenstore.KeyDeviceID)
}

// ID returns the persisted id, generating it on first use.
func (r *Resolver) ID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.store.Get(ctx, tokenstore.KeyDeviceID); ok && id != "" {
		return id, nil
	}
	id, err := Generate(r.platform, r.now())
	if err != nil {
		return "", err
	}
	r.store.Set(ctx, tokenstore.KeyDeviceID, id)
	return id, nil
}
