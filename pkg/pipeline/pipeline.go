// Package pipeline orchestrates the checklist import.
//
// The import runs in fixed stages: ensure the checklist archive is on disk,
// parse the names and distribution files, rebuild the relational store, then
// derive and persist the nested-set tree. Both the CLI and the API trigger
// imports through the same Runner, so caching of the archive and stage
// accounting live here rather than in either surface.
//
// Example:
//
//	runner := pipeline.NewRunner(store, fetcher, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{})
package pipeline

import (
	"time"

	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/tree"
)

// Options controls one import run.
type Options struct {
	// Force re-downloads the archive even when it is already on disk.
	Force bool

	// SkipDistributions imports names and the tree only.
	SkipDistributions bool

	// SkipTree imports the relational tables without rebuilding taxon_tree.
	SkipTree bool

	// DeleteFiles removes the downloaded archive and the extracted files
	// after a successful import.
	DeleteFiles bool
}

// ValidateAndSetDefaults checks option consistency. All current option
// combinations are legal; the hook exists so new options get validated in
// one place.
func (o *Options) ValidateAndSetDefaults() error {
	return nil
}

// Stats carries per-stage accounting for one run.
type Stats struct {
	FetchTime time.Duration
	ParseTime time.Duration
	StoreTime time.Duration
	TreeTime  time.Duration

	Names         int
	Distributions int
	TreeNodes     int
}

// Result is the outcome of one import run.
type Result struct {
	Stats         Stats
	DataDir       string
	Root          tree.NodeID
	SyntheticRoot bool
}

// validate is a small guard shared by Runner entry points.
func validate(opts *Options) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid options")
	}
	return nil
}
