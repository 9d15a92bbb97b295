package statecontroller

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvidia/carbide-core/internal/logger"
	"github.com/nvidia/carbide-core/internal/store"
	"github.com/nvidia/carbide-core/internal/tracing"
	"github.com/nvidia/carbide-core/pkg/dwb"
	"github.com/nvidia/carbide-core/pkg/metrics"
)

// Config configures one Controller's run loop.
type Config struct {
	// Kind is the object kind this controller dispatches, e.g. "network-segment".
	Kind string
	// ProcessorID identifies this process among any peers sharing the Kind.
	ProcessorID string
	// SweepInterval is how often Run triggers an Iterate pass.
	SweepInterval time.Duration
	// LeaseTTL bounds how long a single dispatch may hold the per-object lease.
	LeaseTTL time.Duration
	// WorkerPoolSize bounds how many objects are dispatched concurrently
	// within one Iterate sweep. Safe to parallelize because mutual
	// exclusion per object is already enforced by the DB lease.
	WorkerPoolSize int
	// DispatchInterval separates each wave of up to WorkerPoolSize
	// concurrent dispatches, so a sweep doesn't thunder the DB with
	// every object's lease acquisition at once.
	DispatchInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Second
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = 8
	}
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = time.Second
	}
}

// Controller drives one object Kind's Handler to completion, one
// dispatch per lease-held object per sweep. S is the concrete
// controller state type; the framework never constructs an S itself,
// it only round-trips it through codec and handler.
type Controller[S StateLabeler] struct {
	cfg     Config
	store   *store.GORMStore
	handler Handler[S]
	codec   StateCodec[S]
	metrics *metrics.ControllerMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	iteration uint64
}

// New builds a Controller. metricsInst may be nil, which disables
// metric recording entirely (see pkg/metrics.NewControllerMetrics).
func New[S StateLabeler](cfg Config, st *store.GORMStore, h Handler[S], codec StateCodec[S], metricsInst *metrics.ControllerMetrics) *Controller[S] {
	cfg.applyDefaults()
	return &Controller[S]{
		cfg:     cfg,
		store:   st,
		handler: h,
		codec:   codec,
		metrics: metricsInst,
	}
}

// Start begins the background sweep loop, the generic analogue of
// pkg/cache/flusher.BackgroundFlusher.Start: one goroutine, ticker-
// driven, a final sweep on shutdown.
func (c *Controller[S]) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run()
}

// Stop cancels the run loop and blocks until it has exited, including
// its final in-flight sweep.
func (c *Controller[S]) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Controller[S]) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.Iterate(context.Background())
			return
		case <-ticker.C:
			c.Iterate(c.ctx)
		}
	}
}

// Iterate runs one sweep: every object of c.cfg.Kind is leased,
// dispatched, and finalized by a fixed-size pool of worker tasks, one
// task per object. Objects are grouped into waves of up to
// WorkerPoolSize, dispatched concurrently within a wave and separated
// by DispatchInterval between waves, so a sweep doesn't thunder the DB
// with every object's lease acquisition and handler dispatch at once.
// Errors dispatching or finalizing one object never abort the sweep;
// they're logged and counted so one stuck object can't starve its
// siblings.
func (c *Controller[S]) Iterate(ctx context.Context) {
	c.iteration++

	objs, err := c.store.ListObjectsByKind(ctx, c.cfg.Kind)
	if err != nil {
		logger.ErrorCtx(ctx, "controller: list objects failed",
			logger.ObjectKind(c.cfg.Kind), logger.Err(err))
		return
	}

	for wave := 0; wave < len(objs); wave += c.cfg.WorkerPoolSize {
		end := wave + c.cfg.WorkerPoolSize
		if end > len(objs) {
			end = len(objs)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.WorkerPoolSize)
		for _, obj := range objs[wave:end] {
			obj := obj
			g.Go(func() error {
				c.dispatchOne(gctx, obj)
				return nil
			})
		}
		_ = g.Wait()

		if end >= len(objs) {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.DispatchInterval):
		}
	}
}

func (c *Controller[S]) dispatchOne(ctx context.Context, obj *store.Object) {
	lc := logger.NewLogContext(obj.Kind, obj.ID).
		WithState(obj.ControllerState, obj.StateVersion).
		WithIteration(c.iteration, c.cfg.ProcessorID)
	ctx = logger.WithContext(ctx, lc)

	if err := c.store.AcquireLease(ctx, obj.Kind, obj.ID, c.cfg.ProcessorID, c.cfg.LeaseTTL); err != nil {
		if errors.Is(err, store.ErrLeaseHeldByOther) {
			logger.DebugCtx(ctx, "controller: object leased elsewhere, skipping")
			return
		}
		logger.ErrorCtx(ctx, "controller: lease acquisition failed", logger.Err(err))
		c.recordHandlerErr(ctx, statecontrollerErr(ErrKindGeneric, "acquire_lease", err))
		return
	}
	defer func() {
		if err := c.store.ReleaseLease(ctx, obj.Kind, obj.ID, c.cfg.ProcessorID); err != nil {
			logger.WarnCtx(ctx, "controller: lease release failed", logger.Err(err))
		}
	}()

	c.checkSla(ctx, obj)

	state, err := c.codec.Decode(obj.StateData)
	if err != nil {
		logger.ErrorCtx(ctx, "controller: state decode failed", logger.Err(err))
		c.recordHandlerErr(ctx, statecontrollerErr(ErrKindMissingData, "decode", err))
		return
	}

	hctx := &Context[S]{
		Services:      &Services{Store: c.store, Metrics: c.metrics},
		Metrics:       NewObjectMetrics(),
		PendingWrites: dwb.New(),
		Object:        obj,
		State:         state,
	}

	dispatchCtx, endSpan := tracing.DispatchSpan(ctx, obj.Kind, obj.ID, obj.ControllerState)
	start := time.Now()
	outcome, err := c.handler.HandleObjectState(dispatchCtx, hctx)
	dur := time.Since(start)

	if err != nil {
		endSpan(string(KindDoNothing), "", 0, err)
		logger.ErrorCtx(ctx, "controller: handler returned error", logger.Err(err), logger.DurationMs(dur.Seconds()*1000))
		var herr *HandlerError
		if errors.As(err, &herr) {
			c.recordHandlerErr(ctx, herr)
		} else {
			c.recordHandlerErr(ctx, statecontrollerErr(ErrKindGeneric, "handle", err))
		}
		return
	}
	endSpan(string(outcome.Kind), outcome.SourceFile, outcome.SourceLine, nil)

	if c.metrics != nil {
		c.metrics.RecordDispatch(obj.Kind, string(outcome.Kind), dur)
	}

	if err := c.finalize(ctx, obj, outcome, hctx); err != nil {
		logger.ErrorCtx(ctx, "controller: finalize failed", logger.Err(err))
		c.recordHandlerErr(ctx, statecontrollerErr(ErrKindTransaction, "finalize", err))
	}
}

// finalize persists the outcome of one dispatch — the new controller
// state (or deletion), the history row, and every queued deferred
// write — inside a single transaction, reusing one the handler already
// opened via Outcome.WithTx rather than nesting a second one.
func (c *Controller[S]) finalize(ctx context.Context, obj *store.Object, outcome Outcome[S], hctx *Context[S]) error {
	apply := func(tx *store.Tx) error {
		if err := hctx.PendingWrites.ApplyAll(ctx, tx); err != nil {
			return err
		}

		hist := &store.ObjectHistory{
			ObjectID:      obj.ID,
			ObjectKind:    obj.Kind,
			FromState:     obj.ControllerState,
			OutcomeKind:   string(outcome.Kind),
			OutcomeReason: outcome.Reason,
			SourceFile:    outcome.SourceFile,
			SourceLine:    outcome.SourceLine,
		}

		now := time.Now()
		switch outcome.Kind {
		case KindTransition:
			encoded, err := c.codec.Encode(outcome.NextState)
			if err != nil {
				return err
			}
			obj.StateData = encoded
			obj.ControllerState = outcome.NextState.StateLabel()
			obj.StateVersion++
			hist.ToState = obj.ControllerState
			obj.LastOutcomeKind = string(outcome.Kind)
			obj.LastOutcomeAt = &now
			if err := tx.UpsertObject(ctx, obj); err != nil {
				return err
			}
		case KindDeleted:
			if err := tx.DeleteObject(ctx, obj.ID); err != nil {
				return err
			}
		case KindWait, KindDoNothing:
			hist.ToState = obj.ControllerState
			obj.LastOutcomeKind = string(outcome.Kind)
			obj.LastOutcomeAt = &now
			if err := tx.UpsertObject(ctx, obj); err != nil {
				return err
			}
		}

		return tx.RecordHistory(ctx, hist)
	}

	if outcome.Tx != nil {
		if err := apply(outcome.Tx); err != nil {
			_ = outcome.Tx.Rollback()
			return err
		}
		return outcome.Tx.Commit()
	}
	return c.store.WithTransaction(ctx, apply)
}

// checkSla flags an object whose SlaDeadline has already passed; it
// does not itself change the object's state, since only the handler
// may decide what an SLA breach means for a given object kind. It
// exists purely to surface the breach via logs/metrics so operators
// can find stuck objects before a human has to go looking.
func (c *Controller[S]) checkSla(ctx context.Context, obj *store.Object) {
	if obj.SlaDeadline == nil || obj.SlaDeadline.After(time.Now()) {
		return
	}
	logger.WarnCtx(ctx, "controller: object past its state SLA deadline",
		logger.ControllerState(obj.ControllerState))
	if c.metrics != nil {
		c.metrics.RecordSlaBreach(obj.Kind, obj.ControllerState)
	}
	c.recordHandlerErr(ctx, statecontrollerErr(ErrKindTimeInStateAboveSla, "", nil))
}

func (c *Controller[S]) recordHandlerErr(ctx context.Context, herr *HandlerError) {
	logger.ErrorCtx(ctx, "controller: handler error", logger.ErrorLabel(herr.MetricLabel()))
	if c.metrics != nil {
		c.metrics.RecordHandlerError(c.cfg.Kind, herr.MetricLabel())
	}
}

func statecontrollerErr(kind HandlerErrorKind, op string, err error) *HandlerError {
	return NewHandlerError(kind, op, err)
}
