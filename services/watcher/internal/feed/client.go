package feed

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/models"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/utils"
)

const maxConcurrentFetches = 4

// Loader fetches a feature collection. *source.Loader implements it.
type Loader interface {
	Load(ctx context.Context, src string) (diag.FeatureCollection, error)
}

// Loops are the feed documents fetched per variable.
var Loops = []diag.Loop{diag.LoopGuess, diag.LoopAnalysis}

// URL is the feed document for one variable and loop of an analysis:
// base/<model>/<system>/<domain>/<background>/<frequency>/<init>/<variable>_<loop>.json
func URL(base string, a diag.Analysis, key models.FeedKey) string {
	background := a.Background
	if background == "" {
		background = "none"
	}
	parts := []string{a.Model, a.System, a.Domain, background, a.Frequency, a.InitializationTime,
		fmt.Sprintf("%s_%s.json", key.Variable, key.Loop)}
	u := base
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// Client reads the diagnostics feed of one analysis.
type Client struct {
	loader   Loader
	base     string
	sentinel float64
}

// NewClient builds a client for the feed at base.
func NewClient(loader Loader, base string, sentinel float64) *Client {
	return &Client{loader: loader, base: base, sentinel: sentinel}
}

// FetchAll loads every variable in both loops. Any failed document fails
// the whole fetch so an analysis is never stored half-ingested. Batches
// follow the order of variables, guess before analysis.
func (c *Client) FetchAll(ctx context.Context, a diag.Analysis, variables []diag.Variable) ([]models.Batch, error) {
	keys := make([]models.FeedKey, 0, len(variables)*len(Loops))
	for _, v := range variables {
		for _, loop := range Loops {
			keys = append(keys, models.FeedKey{Variable: v, Loop: loop})
		}
	}

	batches := make([]models.Batch, len(keys))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentFetches)
	for i, key := range keys {
		group.Go(func() error {
			fc, err := c.loader.Load(ctx, URL(c.base, a, key))
			if err != nil {
				return fmt.Errorf("fetch %s %s: %w", key.Variable, key.Loop, err)
			}
			batches[i] = utils.BuildBatch(key, fc, c.sentinel)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}
