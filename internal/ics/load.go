// Package ics imports local iCalendar files into calendar events, expanding
// recurrences within a time window.
package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Source is a single ICS file.
type Source struct {
	// ID is the config source ID; imported events carry it as SourceID.
	ID   string
	Path string
	// Color is used for events without a COLOR property.
	Color string
}

// SourcesFromConfig maps configured sources to import sources.
func SourcesFromConfig(cfgs []config.SourceConfig) []Source {
	out := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Source{ID: c.ID, Path: c.Path, Color: c.Color})
	}
	return out
}

// LoadResult is the outcome of importing one source.
type LoadResult struct {
	Source    Source
	Events    []model.Event
	Truncated []string
	ModTime   time.Time
}

// LoadAll imports every source. Failures are logged and returned in the
// error slice; the results only hold sources that loaded.
func LoadAll(ctx context.Context, sources []Source, cfg ExpandConfig) ([]LoadResult, []error) {
	results := make([]LoadResult, 0, len(sources))
	errs := make([]error, 0)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := LoadOne(ctx, src, cfg)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("ics load failed", err, "id", src.ID, "path", src.Path)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// LoadOne reads, parses and expands a single source.
func LoadOne(ctx context.Context, src Source, cfg ExpandConfig) (LoadResult, error) {
	if src.Path == "" {
		return LoadResult{}, errors.New("source path is empty")
	}
	if err := ctx.Err(); err != nil {
		return LoadResult{}, err
	}

	info, err := os.Stat(src.Path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("stat %s: %w", src.ID, err)
	}
	body, err := os.ReadFile(src.Path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read %s: %w", src.ID, err)
	}

	parsed, err := ParseICS(src, body)
	if err != nil {
		return LoadResult{}, err
	}
	expanded, err := Expand(parsed, cfg)
	if err != nil {
		return LoadResult{}, fmt.Errorf("expand %s: %w", src.ID, err)
	}

	appLog.Info("ics load success", "id", src.ID, "events", len(expanded.Events))
	return LoadResult{
		Source:    src,
		Events:    expanded.Events,
		Truncated: expanded.TruncatedEvents,
		ModTime:   info.ModTime(),
	}, nil
}
