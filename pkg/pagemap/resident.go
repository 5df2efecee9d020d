package pagemap

import (
	"sort"
	"strconv"
	"strings"
)

// ResidentPageSet holds page indices in ascending order
type ResidentPageSet []uint64

// Len returns the number of pages in the set
func (s ResidentPageSet) Len() int {
	return len(s)
}

// Contains reports whether page is in the set
func (s ResidentPageSet) Contains(page uint64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= page })
	return i < len(s) && s[i] == page
}

// String compresses consecutive indices, e.g. "1-5, 9"
func (s ResidentPageSet) String() string {
	if len(s) == 0 {
		return ""
	}

	var ranges []string
	start, end := s[0], s[0]
	flush := func() {
		if start == end {
			ranges = append(ranges, strconv.FormatUint(start, 10))
		} else {
			ranges = append(ranges, strconv.FormatUint(start, 10)+"-"+strconv.FormatUint(end, 10))
		}
	}

	for _, page := range s[1:] {
		if page == end+1 {
			end = page
			continue
		}
		flush()
		start, end = page, page
	}
	flush()

	return strings.Join(ranges, ", ")
}

// residentFromVector turns a mincore(2) vector into page indices. Only the
// least significant bit of each byte is defined.
func residentFromVector(vec []byte) ResidentPageSet {
	pages := make(ResidentPageSet, 0, len(vec))
	for i, b := range vec {
		if b&1 != 0 {
			pages = append(pages, uint64(i))
		}
	}
	return pages
}
