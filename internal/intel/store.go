package intel

import "errors"

// ErrUnknownSession is returned by operations that require an existing record.
var ErrUnknownSession = errors.New("unknown session")

// Store maps a session id to its evidence record. All operations are keyed
// by session id; there is no cross-session interaction. Implementations
// must serialize the merge-then-maybe-send sequence per key so the
// pending→sent transition cannot fire twice under concurrent duplicates.
type Store interface {
	// GetOrCreate returns the record for sessionID, creating an empty
	// pending record on first sight.
	GetOrCreate(sessionID string) (Record, error)

	// Merge folds one turn's delta into the record and returns the
	// post-merge state. Merging is idempotent with respect to
	// already-seen artifacts.
	Merge(sessionID string, d Delta) (Record, error)

	// TrySend atomically transitions pending→sent. Returns true only for
	// the single call that performed the transition.
	TrySend(sessionID string) (bool, error)

	// Suppress atomically transitions pending→suppressed (callback
	// disabled by configuration). Returns true if this call transitioned.
	Suppress(sessionID string) (bool, error)

	// Get returns the record and whether it exists.
	Get(sessionID string) (Record, bool, error)

	// List returns all records, for the operator inspection endpoints.
	List() ([]Record, error)

	// Close releases any backing resources.
	Close() error
}

// Open selects the store backing: sqlite when a path is configured,
// process memory otherwise.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLiteStore(path)
}
