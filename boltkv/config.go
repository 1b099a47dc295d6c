package boltkv

import (
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/tempuscache/expirekv/provider"
)

const (
	// componentName is the component name used for logging, matching the
	// pgbk.go convention of a package-level componentName constant.
	componentName = "boltkv"

	defaultWorkers            = 4
	defaultRequestChannelSize = 4096
)

// expirationsTreeSuffix names the reserved per-scope expiry bucket; it
// must never collide with a caller-chosen scope name (spec §6).
const expirationsTreeSuffix = "__EXPIRATIONS_TABLE__"

// Config is the configuration struct for Backend; outside tests it is
// usually built from a provider.Params by NewFromParams, mirroring the
// pgbk.Config / CheckAndSetDefaults pattern.
type Config struct {
	// Path is the bbolt database file path.
	Path string

	// Workers is the number of blocking worker goroutines dispatched
	// against the bounded request channel. Defaults to 4.
	Workers int

	// RequestChannelSize bounds the worker-pool request channel; a full
	// channel surfaces as a Custom error to the caller (spec §4.3/§5).
	RequestChannelSize int

	// PerformDeletion enables the dedicated deletion thread that drains
	// the delay-queue and physically removes expired entries.
	PerformDeletion bool

	// ScanDBOnStart, when combined with PerformDeletion, reconciles
	// persisted expiry records with the in-memory scheduler at startup.
	ScanDBOnStart bool

	// Clock is the time source; defaults to the real wall clock.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates c and fills in unset fields with their
// defaults, the same shape pgbk.Config.CheckAndSetDefaults follows.
func (c *Config) CheckAndSetDefaults() error {
	if c.Path == "" {
		return trace.BadParameter("boltkv: Path must be set")
	}
	if c.Workers < 0 {
		return trace.BadParameter("boltkv: Workers must be non-negative")
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.RequestChannelSize < 0 {
		return trace.BadParameter("boltkv: RequestChannelSize must be non-negative")
	}
	if c.RequestChannelSize == 0 {
		c.RequestChannelSize = defaultRequestChannelSize
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ScanDBOnStart && !c.PerformDeletion {
		return trace.BadParameter("boltkv: ScanDBOnStart requires PerformDeletion")
	}
	return nil
}

// NewFromParams builds a Backend from a provider.Params bag, the
// boltkv analog of pgbk.NewFromParams(ctx, backend.Params).
func NewFromParams(params provider.Params) (*Backend, error) {
	cfg := Config{
		Path:            params.String("path"),
		Workers:         params.Int("workers"),
		PerformDeletion: params["perform_deletion"] == true,
		ScanDBOnStart:   params["scan_db_on_start"] == true,
	}
	return NewWithConfig(cfg)
}
