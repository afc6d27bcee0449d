package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	nrerrs "github.com/jdholdren/newsroom/internal/errors"
	"github.com/jdholdren/newsroom/internal/newsroom"
)

// How many feeds are fetched at once, and the wait between those batches.
const (
	fetchBatchSize  = 3
	fetchBatchPause = time.Second
)

type workflows struct{}

// Ingest runs a whole ingestion: every source is fetched, the items are
// processed together and the report is recorded.
//
// A source that can't be fetched is noted in the report and doesn't stop the
// others.
func (workflows) Ingest(ctx workflow.Context) (newsroom.Report, error) {
	l := workflow.GetLogger(ctx)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3, // 0 is unlimited retries
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	var runID string
	if err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return newsroom.NewRunID()
	}).Get(&runID); err != nil {
		return newsroom.Report{}, err
	}
	started := workflow.Now(ctx).UTC()

	var sources []newsroom.FeedSource
	if err := workflow.ExecuteActivity(ctx, acts.Sources).Get(ctx, &sources); err != nil {
		l.Error("failed to list sources", "error", err)
		return newsroom.Report{}, err
	}

	var (
		perSource = make([][]newsroom.RawItem, len(sources))
		failures  = make([]*newsroom.SourceFailure, len(sources))
		batches   = lo.Chunk(lo.Range(len(sources)), fetchBatchSize)
	)
	for n, batch := range batches {
		if n > 0 {
			if err := workflow.Sleep(ctx, fetchBatchPause); err != nil {
				return newsroom.Report{}, err
			}
		}

		wg := workflow.NewWaitGroup(ctx)
		wg.Add(len(batch))
		for _, i := range batch {
			workflow.Go(ctx, func(ctx workflow.Context) {
				defer wg.Done()

				src := sources[i]
				if err := workflow.ExecuteActivity(ctx, acts.FetchSource, src).Get(ctx, &perSource[i]); err != nil {
					l.Error("failed to fetch source", "source", src.Name, "error", err)
					failures[i] = &newsroom.SourceFailure{Source: src.Name, Error: err.Error()}
				}
			})
		}
		wg.Wait(ctx)
	}

	processCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	var report newsroom.Report
	if err := workflow.ExecuteActivity(processCtx, acts.ProcessItems, runID, lo.Flatten(perSource)).Get(ctx, &report); err != nil {
		l.Error("failed to process items", "error", err)
		return newsroom.Report{}, err
	}

	report.ID = runID
	report.StartedAt = started
	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, *f)
		}
	}
	report.FetchFailures = len(report.Failures)
	report.FinishedAt = workflow.Now(ctx).UTC()

	if err := workflow.ExecuteActivity(ctx, acts.RecordRun, report).Get(ctx, nil); err != nil {
		l.Error("failed to record run", "error", err)
		return report, err
	}

	return report, nil
}

// TriggerIngest starts an ingestion run and waits for its report.
func TriggerIngest(ctx context.Context, c client.Client) (newsroom.Report, error) {
	options := client.StartWorkflowOptions{
		TaskQueue: TaskQueue,
	}
	we, err := c.ExecuteWorkflow(ctx, options, workflows{}.Ingest)
	if err != nil {
		return newsroom.Report{}, fmt.Errorf("unable to execute workflow: %s", err)
	}

	var report newsroom.Report
	err = we.Get(ctx, &report)
	nrErr := &nrerrs.Error{}
	if asNewsroomErr(err, &nrErr) {
		return newsroom.Report{}, nrErr
	}
	if err != nil {
		return newsroom.Report{}, fmt.Errorf("error executing workflow: %s", err)
	}

	return report, nil
}
