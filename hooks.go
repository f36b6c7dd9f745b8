package nscache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
// Keys passed to hooks are logical (unprefixed).
type Hooks interface {
	// Hit and Miss fire on every read that reached the store.
	Hit(key string)
	Miss(key string)

	// A store call failed and was turned into a miss/zero result.
	// op ∈ {"get", "set", "delete", "delete_pattern", "exists", "flush",
	// "increment", "decrement", "expire", "ttl", "stats"}
	StoreError(op, key string, err error)

	// An operation was skipped because the cache is unavailable.
	Skipped(op string)

	// A framed value could not be decoded and was returned as a raw string.
	DecodeFallback(key string, err error)

	// Availability changed (Reconnect, Close).
	ConnectionChanged(available bool)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string)                       {}
func (NopHooks) Miss(string)                      {}
func (NopHooks) StoreError(string, string, error) {}
func (NopHooks) Skipped(string)                   {}
func (NopHooks) DecodeFallback(string, error)     {}
func (NopHooks) ConnectionChanged(bool)           {}
