// Package pagemap inspects the page cache state of a file: which of its pages
// are resident, which physical frame backs a page and what the kernel knows
// about that frame. It can also ask the kernel to drop a file's cached pages.
//
// Every call maps, queries and unmaps again; nothing is cached, since the page
// cache changes under concurrent I/O. Calls against the same file must be
// serialized by the caller.
package pagemap

import (
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// File is the subset of *os.File the engine needs
type File interface {
	Fd() uintptr
	Name() string
	Stat() (os.FileInfo, error)
}

// Engine performs page cache introspection
type Engine struct {
	logger     *zap.Logger
	pageMap    EntryReader
	kpageFlags EntryReader
	meter      metric.Meter
	pageSize   int
	metrics    *engineMetrics
}

// Option configures an Engine
type Option func(*Engine)

// WithPageMap replaces the /proc/self/pagemap reader
func WithPageMap(r EntryReader) Option {
	return func(e *Engine) { e.pageMap = r }
}

// WithKernelPageFlags replaces the /proc/kpageflags reader
func WithKernelPageFlags(r EntryReader) Option {
	return func(e *Engine) { e.kpageFlags = r }
}

// WithMeter sets the meter used for operation metrics
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// NewEngine creates an engine reading the live kernel tables unless options
// say otherwise. A nil logger disables logging.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		logger:     logger,
		pageMap:    NewProcTable(SelfPageMapPath),
		kpageFlags: NewProcTable(KernelPageFlagsPath),
		meter:      otel.Meter("github.com/mohammedgqudah/ff/pkg/pagemap"),
		pageSize:   VMPageSize(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newEngineMetrics(e.meter, e.logger)

	return e
}

// PageSize returns the VM page size the engine uses
func (e *Engine) PageSize() int {
	return e.pageSize
}

// PageCount returns how many VM pages a file of size bytes spans
func (e *Engine) PageCount(size int64) uint64 {
	if size <= 0 {
		return 0
	}
	ps := uint64(e.pageSize)
	return (uint64(size) + ps - 1) / ps
}

var (
	vmPageSizeOnce sync.Once
	vmPageSize     int
)

// VMPageSize returns the virtual memory page size of the process
func VMPageSize() int {
	vmPageSizeOnce.Do(func() {
		vmPageSize = os.Getpagesize()
	})
	return vmPageSize
}
