// Package nonce tracks recently seen request nonces so that a captured signed
// request cannot be replayed.
//
// Stores only need to remember a nonce for as long as a request carrying it
// could still pass the timestamp check. Both implementations here are local to
// one process or one database file; deployments running several control-plane
// instances behind a load balancer must share a store, or accept that a request
// replayed against a different instance is not detected.
package nonce

import (
	"context"
	"errors"
	"time"
)

var ErrEmptyNonce = errors.New("nonce: empty nonce")

// Store records nonces with atomic check-and-record semantics.
type Store interface {
	// Record marks nonce as used. It returns true if the nonce had not been
	// seen within the retention window, false if it was already recorded.
	// Two concurrent calls with the same nonce never both return true.
	Record(ctx context.Context, nonce string) (bool, error)
}

// RetentionFor returns how long a nonce must be remembered for a signer that
// accepts timestamps within ±tolerance of now. A request stamped at the future
// edge of the window stays acceptable for two tolerance widths after it is
// first seen.
func RetentionFor(tolerance time.Duration) time.Duration {
	return 2 * tolerance
}

// Peeker is implemented by stores that can report a nonce as used without
// recording it.
type Peeker interface {
	Seen(ctx context.Context, nonce string) (bool, error)
}
