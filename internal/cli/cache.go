package cli

import (
	"fmt"

	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/mohammedgqudah/ff/pkg/pagemap"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cacheEvict bool
	cacheDirty bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache <file>",
	Short: "Show which pages of a file are in the page cache",
	Long: `Show which pages of a file are resident in the page cache.

Probing residency does not fault any page in. With --verbose every resident
page is looked up in /proc/self/pagemap (see proc_pid_pagemap(5)) and its
frame in /proc/kpageflags (see proc_kpageflags(5)).`,
	Example: `  # Summary of cached pages
  ff cache data.db

  # Drop the file's clean pages from the cache
  ff cache --evict data.db

  # Show dirty pages and per-page flags
  sudo ff cache --dirty -v data.db`,
	Args: cobra.ExactArgs(1),
	RunE: runCache,
}

func init() {
	cacheCmd.Flags().BoolVarP(&cacheEvict, "evict", "e", false, "evict all cached pages")
	cacheCmd.Flags().BoolVarP(&cacheDirty, "dirty", "d", false, "show dirty pages")
}

type cacheReport struct {
	File        string                  `json:"file" yaml:"file"`
	Size        int64                   `json:"size" yaml:"size"`
	PageSize    int                     `json:"page_size" yaml:"page_size"`
	BlockSize   int                     `json:"block_size" yaml:"block_size"`
	Pages       uint64                  `json:"pages" yaml:"pages"`
	Resident    pagemap.ResidentPageSet `json:"resident" yaml:"resident"`
	CachedBytes uint64                  `json:"cached_bytes" yaml:"cached_bytes"`
	Evicted     bool                    `json:"evicted,omitempty" yaml:"evicted,omitempty"`
	// Remaining lists pages still resident after an eviction
	Remaining pagemap.ResidentPageSet `json:"remaining,omitempty" yaml:"remaining,omitempty"`
	Dirty     pagemap.ResidentPageSet `json:"dirty,omitempty" yaml:"dirty,omitempty"`
	Details   []pageReport            `json:"details,omitempty" yaml:"details,omitempty"`
}

func runCache(cmd *cobra.Command, args []string) error {
	f, err := openFile(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	engine := newEngine()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed getting metadata for %s: %w", f.Name(), err)
	}
	blockSize, err := engine.FSBlockSize(f)
	if err != nil {
		return err
	}

	logger.Debug("Sizes",
		zap.Int("fs_block_size", blockSize),
		zap.Int("vm_page_size", engine.PageSize()))

	resident, err := engine.ResidentPages(f)
	if err != nil {
		return err
	}

	report := cacheReport{
		File:        f.Name(),
		Size:        info.Size(),
		PageSize:    engine.PageSize(),
		BlockSize:   blockSize,
		Pages:       engine.PageCount(info.Size()),
		Resident:    resident,
		CachedBytes: output.CachedBytes(uint64(resident.Len()), engine.PageSize(), info.Size()),
	}

	if cacheEvict {
		if err := engine.EvictPages(f); err != nil {
			return err
		}
		report.Evicted = true

		// eviction is advisory, report what stayed
		if report.Remaining, err = engine.ResidentPages(f); err != nil {
			return err
		}
		return formatter(cmd).Print(report, func(p *output.Printer) {
			p.Evicted(uint64(resident.Len()), report.Pages, report.PageSize, report.Size)
			if report.Remaining.Len() > 0 {
				p.Warning("%d page(s) stayed resident: %s", report.Remaining.Len(), report.Remaining)
			}
		})
	}

	if cacheDirty {
		if report.Dirty, err = engine.DirtyPages(f, resident); err != nil {
			return err
		}
	}

	if verbose {
		seen := make(map[uint64]bool)
		for _, page := range resident {
			// pages sharing one large block would all show its first page
			block := blockOfPage(page, engine.PageSize(), blockSize)
			if seen[block] {
				continue
			}
			seen[block] = true

			detail, err := lookupPage(engine, f, page, block)
			if err != nil {
				return err
			}
			report.Details = append(report.Details, detail)
		}
	}

	return formatter(cmd).Print(report, func(p *output.Printer) {
		p.Resident(uint64(resident.Len()), report.Pages, report.PageSize, report.Size)
		if cacheDirty {
			p.Dirty(report.Dirty, report.Pages)
		}
		for _, d := range report.Details {
			p.Page(d.Page, d.entry, d.flags)
			if d.Error != "" {
				p.Warning("%s", d.Error)
			}
		}
	})
}
