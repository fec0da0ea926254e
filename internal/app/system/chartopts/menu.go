package chartopts

import (
	"sync"

	"github.com/dalemusser/stratachart/internal/app/system/signal"
	"go.uber.org/zap"
)

// Inputs are the declared dependencies of a catalog. A catalog is rebuilt
// whenever any of them differs from the one it was built from.
type Inputs struct {
	Locale       string
	ForceUpdate  uint64
	LivePriority bool
}

// BuildFunc builds a catalog for one set of inputs.
type BuildFunc func(in Inputs) *Catalog

// Menu memoizes catalogs per Inputs. The force-update counter is injected and
// read on every lookup; bumping it also drops memoized catalogs so the next
// lookup rebuilds even for callers that have not seen the new value yet.
type Menu struct {
	build  BuildFunc
	force  *signal.Counter
	logger *zap.Logger

	mu     sync.Mutex
	byKey  map[Inputs]*Catalog
	builds int

	unsubscribe func()
}

// NewMenu creates a menu that rebuilds through build.
func NewMenu(build BuildFunc, force *signal.Counter, logger *zap.Logger) *Menu {
	m := &Menu{
		build:  build,
		force:  force,
		logger: logger,
		byKey:  make(map[Inputs]*Catalog),
	}
	if force != nil {
		m.unsubscribe = force.Subscribe(func(v uint64) {
			m.mu.Lock()
			clear(m.byKey)
			m.mu.Unlock()
			logger.Debug("chart menus invalidated by force update", zap.Uint64("force_update", v))
		})
	}
	return m
}

// Catalog returns the catalog for the locale and live priority, building it
// if no catalog exists for the current force-update generation.
func (m *Menu) Catalog(locale string, livePriority bool) *Catalog {
	in := Inputs{Locale: locale, LivePriority: livePriority}
	if m.force != nil {
		in.ForceUpdate = m.force.Value()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.byKey[in]; ok {
		return c
	}
	c := m.build(in)
	m.byKey[in] = c
	m.builds++
	m.logger.Debug("chart menu built",
		zap.String("locale", in.Locale),
		zap.Uint64("force_update", in.ForceUpdate),
		zap.Bool("live_priority", in.LivePriority),
	)
	return c
}

// Builds returns how many catalogs have been built.
func (m *Menu) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

// Close detaches the menu from the force-update counter.
func (m *Menu) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}
