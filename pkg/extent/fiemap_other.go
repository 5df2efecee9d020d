//go:build !linux
// +build !linux

package extent

// Map is not available outside linux
func Map(f File) ([]Extent, error) {
	return nil, ErrUnsupported
}
