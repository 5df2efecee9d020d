package pagemap

import (
	"fmt"
	"math/bits"
	"strings"
)

// KernelPageFlags is a 64-bit record from /proc/kpageflags, see
// proc_kpageflags(5). It describes a physical frame, not a mapping.
type KernelPageFlags uint64

const (
	Locked KernelPageFlags = 1 << iota
	PageError
	Referenced
	Uptodate
	Dirty
	LRU
	Active
	Slab
	Writeback
	Reclaim
	Buddy
	Mmap
	Anon
	SwapCache
	SwapBacked
	CompoundHead
	CompoundTail
	Huge
	Unevictable
	HWPoison
	NoPage
	KSM
	THP
	Balloon
	ZeroPage
	Idle
)

var kpageFlagNames = [...]struct {
	short byte
	long  string
}{
	{'L', "LOCKED"},
	{'E', "ERROR"},
	{'R', "REFERENCED"},
	{'U', "UPTODATE"},
	{'D', "DIRTY"},
	{'l', "LRU"},
	{'A', "ACTIVE"},
	{'S', "SLAB"},
	{'W', "WRITEBACK"},
	{'I', "RECLAIM"},
	{'B', "BUDDY"},
	{'M', "MMAP"},
	{'a', "ANON"},
	{'s', "SWAPCACHE"},
	{'b', "SWAPBACKED"},
	{'H', "COMPOUND_HEAD"},
	{'T', "COMPOUND_TAIL"},
	{'G', "HUGE"},
	{'u', "UNEVICTABLE"},
	{'X', "HWPOISON"},
	{'n', "NOPAGE"},
	{'x', "KSM"},
	{'t', "THP"},
	{'o', "BALLOON"},
	{'z', "ZERO_PAGE"},
	{'i', "IDLE"},
}

const knownKPageFlags = KernelPageFlags(1)<<len(kpageFlagNames) - 1

// Has reports whether every bit of flag is set
func (f KernelPageFlags) Has(flag KernelPageFlags) bool {
	return f&flag == flag
}

// String lists the set flags by name. Bits without a name are kept as a hex
// remainder so nothing reported by the kernel is dropped.
func (f KernelPageFlags) String() string {
	var parts []string
	for i, name := range kpageFlagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name.long)
		}
	}
	if rest := f &^ knownKPageFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(parts, " | ")
}

// Short renders one character per named flag, '_' when unset
func (f KernelPageFlags) Short() string {
	var b strings.Builder
	b.Grow(len(kpageFlagNames))
	for i, name := range kpageFlagNames {
		if f&(1<<i) != 0 {
			b.WriteByte(name.short)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Count returns the number of set bits
func (f KernelPageFlags) Count() int {
	return bits.OnesCount64(uint64(f))
}
