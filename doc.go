// Package nscache is a namespaced cache over a shared Redis-compatible store.
//
// Every key a Cache touches is stored as prefix+key, so many applications can
// share one store without seeing each other's entries. Destructive bulk
// operations (Flush, DeletePattern) only ever enumerate and delete keys under
// the configured prefix; the store is never flushed as a whole.
//
// Components:
//   - Provider: the remote store (see provider/redis).
//   - Codec: (de)serializes values; JSON by default.
//   - Hooks and Logger: observability, no-ops unless supplied.
//
// Failure model:
//
// The cache never lets the store take the caller down. If the store cannot be
// reached at construction, Available reports false and every operation returns
// its miss/zero result without touching the network. A failure on a single call
// is reported to Hooks, logged when Debug is on, and turned into that call's
// miss/zero result. Errors are returned only for caller mistakes: empty keys,
// invalid TTLs, values the codec cannot encode.
//
// Values:
//
//	set("flag", false)  -> stored as a framed codec payload
//	get("flag")         -> false, ok=true
//	get("missing")      -> nil,   ok=false
//
// Values not written through the cache (INCRBY counters, legacy raw strings) are
// returned unchanged as strings.
//
// Rate limiting and duplicate suppression on top of Increment/Expire live in the
// limit subpackage.
package nscache
