// internal/simulator/runner.go
package simulator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/client"
	"github.com/rovshanmuradov/solana-router/internal/events"
	"github.com/rovshanmuradov/solana-router/internal/plan"
)

// Status of one executed step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StepResult is the outcome of one step execution. Route steps with
// repeat > 1 produce one result per copy.
type StepResult struct {
	Step         string
	Action       plan.Action
	Copy         int
	Wallet       string
	InMint       string
	OutMint      string
	Status       Status
	ErrorName    string
	Err          error
	Signature    string
	Spent        uint64
	Out          uint64
	Fee          uint64
	ComputeUnits uint64
	Duration     time.Duration
	// Expected is false when the outcome contradicts the step's expect_error.
	Expected bool
}

// Report collects step results in plan order.
type Report struct {
	Results []StepResult
}

// Unexpected returns the results that did not match their expectation.
func (r *Report) Unexpected() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if !res.Expected {
			out = append(out, res)
		}
	}
	return out
}

// Runner executes plan steps. Consecutive route steps form a batch that runs
// on a bounded worker pool; admin steps run alone, between batches.
type Runner struct {
	world   *World
	client  *client.RouterClient
	bus     *events.Bus
	logger  *zap.Logger
	workers int
}

// NewRunner creates a runner. bus may be nil.
func NewRunner(world *World, rc *client.RouterClient, bus *events.Bus, logger *zap.Logger, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		world:   world,
		client:  rc,
		bus:     bus,
		logger:  logger.Named("runner"),
		workers: workers,
	}
}

type job struct {
	step  *plan.Step
	copy  int
	index int
}

// Run executes every step of the plan. Step failures are reported, not
// returned; the error is non-nil only when ctx ends or a request cannot be built.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	steps := r.world.Plan.Steps
	report := &Report{}

	for i := 0; i < len(steps); {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if steps[i].Action != plan.ActionRoute {
			report.Results = append(report.Results, r.runAdmin(ctx, &steps[i]))
			i++
			continue
		}

		var batch []job
		for ; i < len(steps) && steps[i].Action == plan.ActionRoute; i++ {
			for c := 0; c < steps[i].Repeat; c++ {
				batch = append(batch, job{step: &steps[i], copy: c + 1, index: len(batch)})
			}
		}
		results, err := r.runBatch(ctx, batch)
		report.Results = append(report.Results, results...)
		if err != nil {
			return report, err
		}
	}

	r.logger.Info("Plan finished",
		zap.Int("results", len(report.Results)),
		zap.Int("unexpected", len(report.Unexpected())))
	return report, nil
}

func (r *Runner) runBatch(ctx context.Context, batch []job) ([]StepResult, error) {
	results := make([]StepResult, len(batch))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, j := range batch {
		g.Go(func() error {
			res, err := r.runRoute(gCtx, j)
			if err != nil {
				return err
			}
			results[j.index] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runRoute(ctx context.Context, j job) (StepResult, error) {
	step := j.step
	req, err := r.world.RouteRequest(step)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %q: %w", step.Name, err)
	}
	req.Memo = fmt.Sprintf("%s#%d", step.Name, j.copy)
	user := r.world.Wallets[step.Wallet]

	res := StepResult{
		Step:    step.Name,
		Action:  step.Action,
		Copy:    j.copy,
		Wallet:  step.Wallet,
		InMint:  step.In,
		OutMint: step.Out,
	}

	r.publish(events.RouteStartedEvent{
		BaseEvent: events.NewBaseEvent(events.RouteStarted),
		Step:      step.Name,
		User:      user.String(),
		Legs:      len(req.Legs),
		UserMaxIn: req.UserMaxIn,
	})

	start := time.Now()
	out, err := r.client.Route(ctx, user, req)
	res.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Status = StatusFailed
		res.Err = err
		if routerErr, ok := r.client.Analyzer().RouterError(err); ok {
			res.ErrorName = routerErr.Name
		}
		res.Expected = step.ExpectError != "" && step.ExpectError == res.ErrorName
		r.publish(events.RouteFailedEvent{
			BaseEvent: events.NewBaseEvent(events.RouteFailed),
			Step:      step.Name,
			User:      user.String(),
			Legs:      len(req.Legs),
			ErrorName: res.ErrorName,
			Error:     err.Error(),
			Duration:  res.Duration,
		})
		r.logger.Debug("Route failed",
			zap.String("step", step.Name),
			zap.Int("copy", j.copy),
			zap.String("error_name", res.ErrorName),
			zap.Error(err))
		return res, nil
	}

	res.Status = StatusSuccess
	res.Expected = step.ExpectError == ""
	res.Signature = out.Signature.String()
	res.ComputeUnits = out.ComputeUnitsConsumed
	var feeBps uint16
	if ev := out.Event; ev != nil {
		res.Spent = ev.TotalSpent
		res.Out = ev.TotalOut
		res.Fee = ev.FeeCharged
		feeBps = ev.FeeBps
	}
	r.publish(events.RouteCompletedEvent{
		BaseEvent:    events.NewBaseEvent(events.RouteCompleted),
		Step:         step.Name,
		User:         user.String(),
		Signature:    res.Signature,
		Slot:         out.Slot,
		Legs:         len(req.Legs),
		TotalSpent:   res.Spent,
		TotalOut:     res.Out,
		Fee:          res.Fee,
		FeeBps:       feeBps,
		ComputeUnits: res.ComputeUnits,
		Duration:     res.Duration,
	})
	return res, nil
}

func (r *Runner) runAdmin(ctx context.Context, step *plan.Step) StepResult {
	admin := r.world.Wallets[step.Wallet]
	res := StepResult{Step: step.Name, Action: step.Action, Copy: 1, Wallet: step.Wallet}

	start := time.Now()
	var (
		out *ledger.Result
		err error
	)
	switch step.Action {
	case plan.ActionPause:
		out, err = r.client.Pause(ctx, admin)
	case plan.ActionUnpause:
		out, err = r.client.Unpause(ctx, admin)
	case plan.ActionSetConfig:
		args := aggregator.SetConfigArgs{FeeBps: *step.FeeBps}
		if step.NewAdmin != "" {
			next := r.world.Wallets[step.NewAdmin].PublicKey
			args.NewAdmin = &next
		}
		out, err = r.client.SetConfig(ctx, admin, args)
	}
	res.Duration = time.Since(start)

	ev := events.AdminActionEvent{
		BaseEvent: events.NewBaseEvent(events.AdminAction),
		Action:    string(step.Action),
		Admin:     admin.String(),
	}
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		if routerErr, ok := r.client.Analyzer().RouterError(err); ok {
			res.ErrorName = routerErr.Name
		}
		res.Expected = step.ExpectError != "" && step.ExpectError == res.ErrorName
		ev.Error = err.Error()
		r.logger.Warn("Admin step failed", zap.String("step", step.Name), zap.Error(err))
	} else {
		res.Status = StatusSuccess
		res.Expected = step.ExpectError == ""
		res.Signature = out.Signature.String()
		res.ComputeUnits = out.ComputeUnitsConsumed
		ev.Signature = res.Signature
		r.logger.Info("Admin step committed",
			zap.String("step", step.Name),
			zap.String("action", string(step.Action)))
	}
	r.publish(ev)
	return res
}

func (r *Runner) publish(ev events.Event) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ev); err != nil {
		r.logger.Warn("Failed to publish event",
			zap.String("event_type", string(ev.Type())),
			zap.Error(err))
	}
}
