package worker

import (
	"context"
	"errors"
	"net/http"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	nrerrs "github.com/jdholdren/newsroom/internal/errors"
	"github.com/jdholdren/newsroom/internal/fetch"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

type (
	SourceFetcher interface {
		Fetch(ctx context.Context, src newsroom.FeedSource) ([]newsroom.RawItem, error)
	}

	Sources interface {
		Sources() []newsroom.FeedSource
	}

	// Processor is the part of the pipeline that runs inside activities.
	Processor interface {
		Process(ctx context.Context, runID string, items []newsroom.RawItem) newsroom.Report
		Record(ctx context.Context, report newsroom.Report) error
	}

	activities struct {
		sources   Sources
		fetcher   SourceFetcher
		processor Processor
	}
)

// Instance to make the workflow a bit more readable
var acts = activities{}

// Every source in the registry, highest priority first.
func (a activities) Sources(ctx context.Context) ([]newsroom.FeedSource, error) {
	return a.sources.Sources(), nil
}

// Grabs the items of a single feed.
//
// Only failures worth another try are left retryable, the rest fail the
// activity right away.
func (a activities) FetchSource(ctx context.Context, src newsroom.FeedSource) ([]newsroom.RawItem, error) {
	l := activity.GetLogger(ctx)

	items, err := a.fetcher.Fetch(ctx, src)
	if err != nil && !fetch.IsTemporary(err) {
		l.Warn("feed can't be fetched", "source", src.Name, "error", err)
		return nil, temporal.NewNonRetryableApplicationError("error fetching feed", errTypeInternal, err, nrerrs.E(err, http.StatusBadGateway))
	}
	if err != nil {
		return nil, temporal.NewApplicationError("error fetching feed", retryableErrType(err), err)
	}

	l.Info("fetched feed", "source", src.Name, "items", len(items))
	return items, nil
}

// Only a feed answering 429 is rate limiting, anything else is internal.
func retryableErrType(err error) string {
	var statusErr fetch.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
		return errTypeRateLimit
	}
	return errTypeInternal
}

func (a activities) ProcessItems(ctx context.Context, runID string, items []newsroom.RawItem) (newsroom.Report, error) {
	return a.processor.Process(ctx, runID, items), nil
}

// Records the run. Recording it twice, as a retried activity could, is fine.
func (a activities) RecordRun(ctx context.Context, report newsroom.Report) error {
	err := a.processor.Record(ctx, report)
	if errors.Is(err, newsroom.ErrConflict) {
		return nil
	}

	return err
}
