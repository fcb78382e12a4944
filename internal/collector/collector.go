// Package collector runs the listings lookup for a manifest of addresses and
// writes one JSON file per address.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Manifest lists the addresses to collect.
type Manifest struct {
	Source    string  `json:"source"`
	Addresses []Entry `json:"addresses"`
}

// Entry is one address to look up. Name is used for the output file and
// defaults to the address.
type Entry struct {
	Name      string `json:"name,omitempty"`
	Address   string `json:"address"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

// Finder runs one lookup; *usecases.ListingService satisfies it.
type Finder interface {
	FindListings(ctx context.Context, address string, timeout time.Duration) (*domain.ListingsReport, error)
}

// Options controls a collection run.
type Options struct {
	OutputDir      string
	Parallelism    int
	DefaultTimeout time.Duration
	// Only, when non-empty, restricts the run to entries with these names.
	Only map[string]bool
}

// Result is the outcome for one entry, also written as its output file.
type Result struct {
	Name      string                 `json:"name"`
	Address   string                 `json:"address"`
	File      string                 `json:"-"`
	Report    *domain.ListingsReport `json:"report,omitempty"`
	ErrorKind domain.ErrorKind       `json:"error_kind,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Addresses) == 0 {
		return nil, fmt.Errorf("manifest %s lists no addresses", path)
	}
	return &m, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// FileName derives a stable file name for an entry.
func FileName(e Entry) string {
	name := e.Name
	if name == "" {
		name = e.Address
	}
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "address"
	}
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	return slug + ".json"
}

// Run looks up every entry with at most opts.Parallelism lookups in flight.
// A failed lookup is recorded in its file and does not stop the others; the
// returned error is only for output failures or cancellation.
func Run(ctx context.Context, finder Finder, m *Manifest, opts Options) ([]Result, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	var entries []Entry
	for _, e := range m.Addresses {
		if len(opts.Only) > 0 && !opts.Only[e.Name] {
			continue
		}
		entries = append(entries, e)
	}

	results := make([]Result, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)

	for i, e := range entries {
		g.Go(func() error {
			res := collect(gctx, finder, e, opts)
			results[i] = res
			return writeResult(res)
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func collect(ctx context.Context, finder Finder, e Entry, opts Options) Result {
	name := e.Name
	if name == "" {
		name = e.Address
	}
	res := Result{Name: name, Address: e.Address, File: filepath.Join(opts.OutputDir, FileName(e))}

	timeout := opts.DefaultTimeout
	if e.TimeoutMs > 0 {
		timeout = time.Duration(e.TimeoutMs) * time.Millisecond
	}

	start := time.Now()
	report, err := finder.FindListings(ctx, e.Address, timeout)
	if err != nil {
		res.ErrorKind = domain.KindOf(err)
		res.Error = err.Error()
		slog.Warn("collect failed", "name", name, "kind", res.ErrorKind, "error", err)
		return res
	}
	res.Report = report
	slog.Info("collected", "name", name, "listings", len(report.Listings),
		"strategy", report.ViewportMeta.Strategy, "elapsed", time.Since(start))
	return res
}

func writeResult(res Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", res.Name, err)
	}
	if err := os.WriteFile(res.File, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", res.File, err)
	}
	return nil
}
