//go:build !linux
// +build !linux

package pagemap

// ResidentPages is not available outside linux
func (e *Engine) ResidentPages(f File) (ResidentPageSet, error) {
	e.logger.Warn("Page cache introspection requires linux")
	return nil, ErrUnsupported
}

// PageInfo is not available outside linux
func (e *Engine) PageInfo(f File, page uint64) (Entry, KernelPageFlags, error) {
	return 0, 0, ErrUnsupported
}

// EvictPages is not available outside linux
func (e *Engine) EvictPages(f File) error {
	return ErrUnsupported
}

// DirtyPages is not available outside linux
func (e *Engine) DirtyPages(f File, pages ResidentPageSet) (ResidentPageSet, error) {
	return nil, ErrUnsupported
}

// FSBlockSize is not available outside linux
func (e *Engine) FSBlockSize(f File) (int, error) {
	return 0, ErrUnsupported
}
