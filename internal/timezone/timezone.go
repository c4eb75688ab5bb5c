// Package timezone resolves IANA time zones for coordinates using an
// offline polygon index.
package timezone

import (
	"fmt"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
)

// Resolver maps coordinates to time zones. Implementations must be safe for
// concurrent use.
type Resolver interface {
	Zone(lat, lon float64) *time.Location
}

// Finder resolves zones with tzf and memoizes loaded locations by name.
type Finder struct {
	finder tzf.F

	mu        sync.RWMutex
	locations map[string]*time.Location
}

var (
	defaultFinder *Finder
	defaultErr    error
	once          sync.Once
)

// Default returns the process-wide Finder. The tzf index is large, so it is
// built once on first use.
func Default() (*Finder, error) {
	once.Do(func() {
		f, err := tzf.NewDefaultFinder()
		if err != nil {
			defaultErr = fmt.Errorf("initializing timezone finder: %w", err)
			return
		}
		defaultFinder = newFinder(f)
	})
	return defaultFinder, defaultErr
}

func newFinder(f tzf.F) *Finder {
	return &Finder{
		finder:    f,
		locations: make(map[string]*time.Location),
	}
}

// Name returns the IANA zone name for a coordinate, or "" when the point
// falls outside every zone polygon.
func (f *Finder) Name(lat, lon float64) string {
	return f.finder.GetTimezoneName(lon, lat)
}

// Zone returns the location for a coordinate, falling back to UTC when the
// zone is unknown or cannot be loaded.
func (f *Finder) Zone(lat, lon float64) *time.Location {
	name := f.Name(lat, lon)
	if name == "" {
		return time.UTC
	}

	f.mu.RLock()
	loc, ok := f.locations[name]
	f.mu.RUnlock()
	if ok {
		return loc
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}

	f.mu.Lock()
	f.locations[name] = loc
	f.mu.Unlock()

	return loc
}

// Fixed is a Resolver that always returns the same location.
type Fixed struct {
	Location *time.Location
}

// Zone implements Resolver.
func (z Fixed) Zone(_, _ float64) *time.Location {
	if z.Location == nil {
		return time.UTC
	}
	return z.Location
}
