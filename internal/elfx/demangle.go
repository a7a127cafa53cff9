package elfx

import (
	"sync"

	"github.com/ianlancetaylor/demangle"
)

// Symbol tables repeat the same mangled names across lookups, so demangling
// results are cached process-wide.
var demangleCache = struct {
	sync.RWMutex
	m map[string]string
}{m: make(map[string]string)}

// Demangle returns the human-readable form of a mangled C++ symbol name.
// Names that do not demangle are returned unchanged.
func Demangle(mangled string) string {
	demangleCache.RLock()
	cached, ok := demangleCache.m[mangled]
	demangleCache.RUnlock()
	if ok {
		return cached
	}

	demangled := demangle.Filter(mangled, demangle.NoClones)

	demangleCache.Lock()
	demangleCache.m[mangled] = demangled
	demangleCache.Unlock()
	return demangled
}
