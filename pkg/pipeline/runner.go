package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/florakb/florakb/pkg/checklist"
	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/fetch"
	"github.com/florakb/florakb/pkg/observability"
	"github.com/florakb/florakb/pkg/tree"
)

// Store is the persistence surface the import writes to.
// *store.Store satisfies it.
type Store interface {
	Recreate(ctx context.Context) error
	InsertNames(ctx context.Context, names []checklist.Name) (int, error)
	InsertDistributions(ctx context.Context, dists []checklist.Distribution) (int, error)
	InsertTree(ctx context.Context, res *tree.Result) error
}

// Fetcher supplies the extracted checklist files. *fetch.Fetcher satisfies it.
type Fetcher interface {
	EnsureData(ctx context.Context, force bool) (string, error)
	Cleanup(keepArchive bool) error
}

// Runner executes imports. It is stateless apart from its collaborators, so
// one Runner can serve concurrent callers as long as the store tolerates it.
type Runner struct {
	Store   Store
	Fetcher Fetcher
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil logger falls back to the package default.
func NewRunner(store Store, fetcher Fetcher, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Store: store, Fetcher: fetcher, Logger: logger}
}

// Execute runs the complete fetch → parse → store → tree import.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := validate(&opts); err != nil {
		return nil, err
	}
	result := &Result{}

	// Stage 1: fetch.
	fetchStart := time.Now()
	dataDir, err := r.Fetcher.EnsureData(ctx, opts.Force)
	if err != nil {
		return nil, err
	}
	result.DataDir = dataDir
	result.Stats.FetchTime = time.Since(fetchStart)
	r.Logger.Info("checklist data ready", "dir", dataDir, "duration", result.Stats.FetchTime)

	// Stage 2: parse.
	parseStart := time.Now()
	names, err := r.parseNames(ctx, dataDir)
	if err != nil {
		return nil, err
	}
	var dists []checklist.Distribution
	if !opts.SkipDistributions {
		if dists, err = r.parseDistributions(ctx, dataDir); err != nil {
			return nil, err
		}
	}
	result.Stats.ParseTime = time.Since(parseStart)
	result.Stats.Names = len(names)
	result.Stats.Distributions = len(dists)
	r.Logger.Info("parsed checklist",
		"names", len(names), "distributions", len(dists), "duration", result.Stats.ParseTime)

	// Stage 3: rebuild the relational store.
	storeStart := time.Now()
	if err := r.Store.Recreate(ctx); err != nil {
		return nil, err
	}
	if _, err := r.Store.InsertNames(ctx, names); err != nil {
		return nil, err
	}
	if len(dists) > 0 {
		if _, err := r.Store.InsertDistributions(ctx, dists); err != nil {
			return nil, err
		}
	}
	result.Stats.StoreTime = time.Since(storeStart)
	r.Logger.Info("store rebuilt", "duration", result.Stats.StoreTime)

	// Stage 4: derive and persist the nested-set tree.
	if !opts.SkipTree {
		treeStart := time.Now()
		res, err := tree.Build(checklist.TreeSource(names),
			checklist.ColPlantNameID, checklist.ColParentNameID)
		observability.Import().OnTreeBuilt(ctx, lenEntries(res), res != nil && res.SyntheticRoot,
			time.Since(treeStart), err)
		if err != nil {
			return nil, err
		}
		if err := r.Store.InsertTree(ctx, res); err != nil {
			return nil, err
		}
		result.Stats.TreeTime = time.Since(treeStart)
		result.Stats.TreeNodes = len(res.Entries)
		result.Root = res.Root
		result.SyntheticRoot = res.SyntheticRoot
		r.Logger.Info("tree rebuilt",
			"nodes", len(res.Entries), "root", res.Root,
			"synthetic", res.SyntheticRoot, "duration", result.Stats.TreeTime)
	}

	if opts.DeleteFiles {
		if err := r.Fetcher.Cleanup(false); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "remove checklist files")
		}
		r.Logger.Info("removed downloaded checklist files")
	}

	return result, nil
}

func (r *Runner) parseNames(ctx context.Context, dataDir string) ([]checklist.Name, error) {
	path := filepath.Join(dataDir, fetch.NamesFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	defer f.Close()

	start := time.Now()
	names, err := checklist.ParseNames(f)
	observability.Import().OnParseComplete(ctx, fetch.NamesFile, len(names), time.Since(start), err)
	return names, err
}

func (r *Runner) parseDistributions(ctx context.Context, dataDir string) ([]checklist.Distribution, error) {
	path := filepath.Join(dataDir, fetch.DistributionsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	defer f.Close()

	start := time.Now()
	var dists []checklist.Distribution
	err = checklist.ReadDistributions(f, func(d checklist.Distribution) error {
		dists = append(dists, d)
		return nil
	})
	observability.Import().OnParseComplete(ctx, fetch.DistributionsFile, len(dists), time.Since(start), err)
	return dists, err
}

func lenEntries(res *tree.Result) int {
	if res == nil {
		return 0
	}
	return len(res.Entries)
}
