// Package worker runs ingestion as a Temporal workflow on a schedule.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
)

const (
	TaskQueue = "shared"

	ingestScheduleID = "ingest_all"
	ingestInterval   = 15 * time.Minute
)

type Params struct {
	fx.In

	Client    client.Client
	Sources   Sources
	Fetcher   SourceFetcher
	Processor Processor
}

// NewWorker sets up the worker with registration of workflows, activities, and schedules.
//
// The worker is started and stopped along with the app.
func NewWorker(ctx context.Context, lc fx.Lifecycle, p Params) (worker.Worker, error) {
	a := activities{
		sources:   p.Sources,
		fetcher:   p.Fetcher,
		processor: p.Processor,
	}

	w := worker.New(p.Client, TaskQueue, worker.Options{})

	if err := registerEverything(ctx, w, a, p.Client); err != nil {
		return nil, fmt.Errorf("error registering workflows and activities: %T, %v", err, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			slog.Info("starting worker", "task_queue", TaskQueue)
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			w.Stop()
			return nil
		},
	})

	return w, nil
}

func registerEverything(ctx context.Context, w worker.Worker, a activities, cli client.Client) error {
	// Workflows
	wfs := workflows{}
	w.RegisterWorkflow(wfs.Ingest)

	// Activities
	w.RegisterActivity(&a)

	// Schedules:
	// Ingest every source
	handle := cli.ScheduleClient().GetHandle(ctx, ingestScheduleID)
	if _, err := handle.Describe(ctx); err != nil {
		handle, err = cli.ScheduleClient().Create(ctx, client.ScheduleOptions{
			ID: ingestScheduleID,
			Spec: client.ScheduleSpec{
				Intervals: []client.ScheduleIntervalSpec{{Every: ingestInterval}},
			},
			Action: &client.ScheduleWorkflowAction{
				ID:        ingestScheduleID,
				Workflow:  wfs.Ingest,
				TaskQueue: TaskQueue,
			},
			TriggerImmediately: true,
		})
		if err != nil {
			return err
		}
	}

	return handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
}

var Module = fx.Module("worker",
	fx.Provide(NewWorker),
)
