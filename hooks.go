package surge

// Hooks are lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking; the cache calls them on
// hot paths. Wrap with hooks/async to decouple slow sinks.
type Hooks interface {
	// A record was deleted on read because it failed wire or codec
	// validation. reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// The loader confirmed the key absent upstream; an absence marker was
	// written.
	AbsenceCached(storageKey string)

	// A stale read handed a refill job to the scheduler.
	RebuildScheduled(storageKey string)

	// A rebuild job failed (loader or write-back); the stale record was
	// left in place.
	RebuildFailed(storageKey string, err error)

	// The scheduler was saturated; the rebuild was skipped and its lock
	// released inline.
	RebuildRejected(storageKey string)

	// The rebuild lock was held elsewhere; the stale value was served
	// as-is.
	LockContended(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)     {}
func (NopHooks) AbsenceCached(string)        {}
func (NopHooks) RebuildScheduled(string)     {}
func (NopHooks) RebuildFailed(string, error) {}
func (NopHooks) RebuildRejected(string)      {}
func (NopHooks) LockContended(string)        {}
