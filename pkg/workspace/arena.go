package workspace

import "sync/atomic"

// arena assigns stable integer identifiers to Branch instances. Identifiers
// are never reused within the process, so side tables keyed by them never
// confuse two Branch instances.
var arena atomic.Uint64

func nextArenaID() uint64 {
	return arena.Add(1)
}
