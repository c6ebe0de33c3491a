// Package bridge drives a single cross-chain transfer through its stages:
// lock on the source chain, prove the lock block to the relay, trigger the
// relay monitor and poll for the destination release.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/internal/domain/services/direction"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/relay"
	"github.com/nft-bridge/bridge_client/pkg/metrics"
	"github.com/nft-bridge/bridge_client/pkg/retry"
	"github.com/nft-bridge/bridge_client/pkg/tracing"
)

const (
	DefaultPollInterval = 3 * time.Second
	subscriberBuffer    = 16
)

// Config tunes the orchestrator
type Config struct {
	PollInterval time.Duration
	// ProofRetry governs retries of SubmitProof while the relay is busy
	ProofRetry       retry.Policy
	RequireOwnership bool
}

// Orchestrator owns at most one transfer at a time. A transfer that stops
// short of a terminal stage is held and can be resumed.
type Orchestrator struct {
	config    Config
	resolver  *direction.Resolver
	chains    ChainProvider
	relay     relay.RelayClient
	ownership OwnershipChecker
	repo      TransferRepository
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	prover    *retry.Retrier

	mu            sync.Mutex
	state         entities.TransferState
	failure       error
	labels        []string
	activeNetwork string
	running       bool
	cancel        context.CancelFunc
	subscribers   map[chan Progress]struct{}
	handler       func(Progress)
}

// NewOrchestrator creates an orchestrator. ownership and repo may be nil.
// An invalid proof retry policy is rejected here, before any asset is locked.
func NewOrchestrator(
	config Config,
	resolver *direction.Resolver,
	chains ChainProvider,
	relayClient relay.RelayClient,
	ownership OwnershipChecker,
	repo TransferRepository,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.ProofRetry.MaxRetries == 0 && config.ProofRetry.InitialDelay == 0 {
		config.ProofRetry = retry.DefaultPolicy()
	}
	config.ProofRetry.RetryableFunc = func(err error) bool {
		return errors.Is(err, domainerrors.ErrRelayBusy)
	}
	if err := config.ProofRetry.Validate(); err != nil {
		return nil, domainerrors.ValidationError("proof_retry", err.Error())
	}

	return &Orchestrator{
		config:      config,
		resolver:    resolver,
		chains:      chains,
		relay:       relayClient,
		ownership:   ownership,
		repo:        repo,
		logger:      logger,
		tracer:      tracing.GetTracer("bridge"),
		now:         time.Now,
		prover:      retry.NewRetrier(config.ProofRetry, logger),
		state:       entities.NewIdleState(),
		labels:      StepLabels(entities.Network{}, entities.Network{}),
		subscribers: make(map[chan Progress]struct{}),
	}, nil
}

// State returns a snapshot of the current transfer
func (o *Orchestrator) State() entities.TransferState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Labels returns the step labels for the current or next transfer
func (o *Orchestrator) Labels() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.labels...)
}

// Running reports whether a transfer is being driven right now
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Subscribe returns a channel of progress events. Events are dropped for a
// subscriber that falls behind.
func (o *Orchestrator) Subscribe() <-chan Progress {
	ch := make(chan Progress, subscriberBuffer)
	o.mu.Lock()
	o.subscribers[ch] = struct{}{}
	o.mu.Unlock()
	return ch
}

// Unsubscribe closes a channel returned by Subscribe
func (o *Orchestrator) Unsubscribe(ch <-chan Progress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for sub := range o.subscribers {
		if sub == ch {
			delete(o.subscribers, sub)
			close(sub)
			return
		}
	}
}

// SetProgressHandler installs a callback invoked synchronously on every
// progress event. Pass nil to remove it.
func (o *Orchestrator) SetProgressHandler(handler func(Progress)) {
	o.mu.Lock()
	o.handler = handler
	o.mu.Unlock()
}

// OnNetworkChanged records the active network. Labels follow it only while
// no transfer is held or running.
func (o *Orchestrator) OnNetworkChanged(networkID string) error {
	res, err := o.resolver.Resolve(networkID)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeNetwork = networkID
	if o.running || o.state.Stage.IsHeld() {
		return err
	}
	if err != nil {
		o.labels = StepLabels(entities.Network{}, entities.Network{})
		return err
	}
	o.labels = StepLabels(res.Source, res.Destination)
	return nil
}

// Transfer starts a transfer and drives it until it is released, fails, is
// held at Locked waiting for confirmation, or ctx is cancelled. An empty
// SourceNetwork means the active network.
func (o *Orchestrator) Transfer(ctx context.Context, req entities.TransferRequest) (entities.TransferState, error) {
	if !entities.ValidDestinationAddress(req.DestinationAddress) {
		return o.State(), domainerrors.ValidationError("destination_address", "must be 0x followed by 40 hex characters")
	}

	o.mu.Lock()
	if req.SourceNetwork == "" {
		req.SourceNetwork = o.activeNetwork
	}
	o.mu.Unlock()

	res, err := o.resolver.Resolve(req.SourceNetwork)
	if err != nil {
		return o.State(), err
	}
	if req.DestinationNetwork != "" && req.DestinationNetwork != res.Destination.ID {
		return o.State(), domainerrors.ValidationError("destination_network",
			fmt.Sprintf("%s bridges to %s, not %s", req.SourceNetwork, res.Destination.ID, req.DestinationNetwork))
	}
	req.DestinationNetwork = res.Destination.ID

	o.mu.Lock()
	if o.running || o.state.Stage.IsHeld() {
		id := o.state.ID.String()
		snapshot := o.state.Clone()
		o.mu.Unlock()
		return snapshot, domainerrors.AlreadyInProgressError(id)
	}
	now := o.now()
	o.state = entities.TransferState{
		ID:              uuid.New(),
		TransferRequest: req,
		Stage:           entities.StageIdle,
		Direction:       res.Direction,
		StartedAt:       now,
		UpdatedAt:       now,
	}
	o.failure = nil
	o.labels = StepLabels(res.Source, res.Destination)
	runCtx := o.startRunLocked(ctx)
	created := o.state.Clone()
	o.mu.Unlock()

	if o.repo != nil {
		if err := o.repo.Create(context.WithoutCancel(ctx), &created); err != nil {
			o.logger.Warn("Failed to journal transfer", zap.String("transfer_id", created.ID.String()), zap.Error(err))
		}
	}

	o.logger.Info("Transfer started",
		zap.String("transfer_id", created.ID.String()),
		zap.Uint64("token_id", req.TokenID),
		zap.String("source", req.SourceNetwork),
		zap.String("destination", req.DestinationNetwork),
		zap.String("direction", string(res.Direction)))

	return o.run(runCtx, res)
}

// Resume continues a held transfer from its current stage
func (o *Orchestrator) Resume(ctx context.Context) (entities.TransferState, error) {
	o.mu.Lock()
	if o.running {
		snapshot := o.state.Clone()
		o.mu.Unlock()
		return snapshot, domainerrors.AlreadyInProgressError(snapshot.ID.String())
	}
	if !o.state.Stage.IsHeld() {
		snapshot := o.state.Clone()
		o.mu.Unlock()
		return snapshot, domainerrors.NotFoundError("held transfer")
	}
	source := o.state.SourceNetwork
	o.mu.Unlock()

	res, err := o.resolver.Resolve(source)
	if err != nil {
		return o.State(), err
	}

	o.mu.Lock()
	if o.running {
		snapshot := o.state.Clone()
		o.mu.Unlock()
		return snapshot, domainerrors.AlreadyInProgressError(snapshot.ID.String())
	}
	o.labels = StepLabels(res.Source, res.Destination)
	runCtx := o.startRunLocked(ctx)
	id, stage := o.state.ID, o.state.Stage
	o.mu.Unlock()

	o.logger.Info("Transfer resumed",
		zap.String("transfer_id", id.String()),
		zap.String("stage", string(stage)))
	return o.run(runCtx, res)
}

// Restore loads a journaled transfer so it can be resumed
func (o *Orchestrator) Restore(ctx context.Context, id uuid.UUID) (entities.TransferState, error) {
	if o.repo == nil {
		return o.State(), domainerrors.NotFoundError("transfer journal")
	}
	stored, err := o.repo.GetByID(ctx, id)
	if err != nil {
		return o.State(), fmt.Errorf("restore transfer %s: %w", id, err)
	}
	if !stored.Stage.IsHeld() {
		return o.State(), domainerrors.ValidationError("stage", fmt.Sprintf("transfer %s is %s and cannot be resumed", id, stored.Stage))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running || o.state.Stage.IsHeld() {
		return o.state.Clone(), domainerrors.AlreadyInProgressError(o.state.ID.String())
	}
	o.state = stored.Clone()
	o.failure = nil
	if res, err := o.resolver.Resolve(stored.SourceNetwork); err == nil {
		o.labels = StepLabels(res.Source, res.Destination)
	}
	return o.state.Clone(), nil
}

// Cancel stops the running transfer. The stage reached is kept.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Reset drops a held or finished transfer and returns to Idle
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return domainerrors.AlreadyInProgressError(o.state.ID.String())
	}
	if o.state.Stage.IsHeld() {
		o.logger.Warn("Discarding held transfer",
			zap.String("transfer_id", o.state.ID.String()),
			zap.String("stage", string(o.state.Stage)),
			zap.String("source_tx_hash", o.state.SourceTxHash))
	}
	o.state = entities.NewIdleState()
	o.failure = nil
	if res, err := o.resolver.Resolve(o.activeNetwork); err == nil {
		o.labels = StepLabels(res.Source, res.Destination)
	} else {
		o.labels = StepLabels(entities.Network{}, entities.Network{})
	}
	return nil
}

func (o *Orchestrator) startRunLocked(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)
	o.running = true
	o.cancel = cancel
	return runCtx
}

func (o *Orchestrator) finishRun() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = nil
	o.running = false
}

// run advances the state machine until a terminal or held stage
func (o *Orchestrator) run(ctx context.Context, res direction.Resolution) (entities.TransferState, error) {
	defer o.finishRun()

	for {
		stage := o.State().Stage
		var err error

		switch stage {
		case entities.StageIdle:
			err = o.transition(ctx, entities.StageLocking, nil)
		case entities.StageLocking:
			err = o.stepLock(ctx, res)
		case entities.StageLocked:
			err = o.stepProve(ctx, res)
		case entities.StageProofSubmitted:
			err = o.stepTrigger(ctx, res)
		case entities.StageMonitorTriggered:
			err = o.transition(ctx, entities.StagePolling, nil)
		case entities.StagePolling:
			err = o.stepPoll(ctx, res)
		default:
			return o.State(), o.terminalError()
		}

		if err != nil {
			return o.State(), err
		}
	}
}

// terminalError is the error a finished run reports
func (o *Orchestrator) terminalError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Stage != entities.StageFailed {
		return nil
	}
	return o.failure
}

func (o *Orchestrator) stepLock(ctx context.Context, res direction.Resolution) error {
	ctx, span := o.startSpan(ctx, "bridge.lock", res)
	defer span.End()

	req := o.State().TransferRequest
	if o.config.RequireOwnership && o.ownership != nil && req.Sender != "" {
		owned, err := o.ownership.Owns(ctx, req.Sender, req.SourceNetwork, req.TokenID)
		if err != nil {
			if ctx.Err() != nil {
				return o.fail(ctx, span, res, domainerrors.CancelledError("ownership check", ctx.Err()))
			}
			return o.fail(ctx, span, res, domainerrors.OwnershipError(req.TokenID, err))
		}
		if !owned {
			return o.fail(ctx, span, res, domainerrors.OwnershipError(req.TokenID, nil))
		}
	}

	client, err := o.chains.Client(req.SourceNetwork)
	if err != nil {
		return o.fail(ctx, span, res, err)
	}
	txHash, err := client.Lock(ctx, req.TokenID, req.DestinationNetwork, req.DestinationAddress)
	if err != nil {
		if ctx.Err() != nil {
			return o.fail(ctx, span, res, domainerrors.CancelledError("lock", errors.Join(ctx.Err(), err)))
		}
		return o.fail(ctx, span, res, err)
	}

	span.SetAttributes(attribute.String("source_tx_hash", txHash))
	o.logger.Info("Asset locked",
		zap.Uint64("token_id", req.TokenID),
		zap.String("network", req.SourceNetwork),
		zap.String("tx_hash", txHash))
	return o.transition(ctx, entities.StageLocked, func(s *entities.TransferState) {
		s.SourceTxHash = txHash
	})
}

func (o *Orchestrator) stepProve(ctx context.Context, res direction.Resolution) error {
	ctx, span := o.startSpan(ctx, "bridge.prove", res)
	defer span.End()

	state := o.State()
	if state.SourceBlockNumber == nil {
		client, err := o.chains.Client(state.SourceNetwork)
		if err != nil {
			return o.fail(ctx, span, res, err)
		}
		block, err := client.WaitForConfirmation(ctx, state.SourceTxHash)
		switch {
		case err == nil:
		case errors.Is(err, domainerrors.ErrTimeout), ctx.Err() != nil:
			return o.hold(ctx, span, err)
		default:
			return o.fail(ctx, span, res, err)
		}

		o.mu.Lock()
		o.state.SourceBlockNumber = &block
		o.state.UpdatedAt = o.now()
		snapshot := o.state.Clone()
		o.mu.Unlock()
		o.journal(ctx, snapshot)
		span.SetAttributes(attribute.Int64("block_number", int64(block)))
	}

	block := *o.State().SourceBlockNumber
	err := o.prover.Do(ctx, func(ctx context.Context) error {
		return o.relay.SubmitProof(ctx, block)
	})
	if err != nil {
		if ctx.Err() != nil {
			return o.hold(ctx, span, ctx.Err())
		}
		return o.fail(ctx, span, res, err)
	}

	o.logger.Info("Lock block submitted to relay",
		zap.String("transfer_id", state.ID.String()),
		zap.Uint64("block_number", block))
	return o.transition(ctx, entities.StageProofSubmitted, nil)
}

func (o *Orchestrator) stepTrigger(ctx context.Context, res direction.Resolution) error {
	ctx, span := o.startSpan(ctx, "bridge.trigger_monitor", res)
	defer span.End()

	if err := o.relay.TriggerMonitor(ctx, res.Direction); err != nil {
		if ctx.Err() != nil {
			return o.hold(ctx, span, ctx.Err())
		}
		return o.fail(ctx, span, res, err)
	}
	return o.transition(ctx, entities.StageMonitorTriggered, nil)
}

// stepPoll queries the relay until the release is stored. It only returns
// on release, a definitive relay error or cancellation.
func (o *Orchestrator) stepPoll(ctx context.Context, res direction.Resolution) error {
	ctx, span := o.startSpan(ctx, "bridge.poll_release", res)
	defer span.End()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		txHash, ready, err := o.relay.QueryRelease(ctx, res.Direction)
		switch {
		case err == nil && ready:
			metrics.ReleasePollsTotal.WithLabelValues("released").Inc()
			span.SetAttributes(attribute.Int("polls", polls))
			return o.release(ctx, res, txHash)
		case err == nil:
			metrics.ReleasePollsTotal.WithLabelValues("not_yet").Inc()
		case ctx.Err() != nil:
			return o.hold(ctx, span, ctx.Err())
		case domainerrors.IsRetryable(err):
			metrics.ReleasePollsTotal.WithLabelValues("error").Inc()
			o.logger.Warn("Release query failed, polling again",
				zap.String("direction", string(res.Direction)),
				zap.Error(err))
		default:
			metrics.ReleasePollsTotal.WithLabelValues("error").Inc()
			return o.fail(ctx, span, res, err)
		}

		select {
		case <-ctx.Done():
			return o.hold(ctx, span, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) release(ctx context.Context, res direction.Resolution, txHash string) error {
	if err := o.transition(ctx, entities.StageReleased, func(s *entities.TransferState) {
		s.DestinationTxHash = txHash
	}); err != nil {
		return err
	}
	metrics.RecordTransfer("released", string(res.Direction))
	o.logger.Info("Asset released",
		zap.String("network", res.Destination.ID),
		zap.String("tx_hash", txHash),
		zap.String("explorer", res.Destination.ExplorerTxURL(txHash)))
	return nil
}

// hold stops the run without leaving the current stage
func (o *Orchestrator) hold(ctx context.Context, span trace.Span, cause error) error {
	snapshot := o.State()
	span.SetAttributes(attribute.Bool("held", true))
	o.logger.Info("Transfer held",
		zap.String("transfer_id", snapshot.ID.String()),
		zap.String("stage", string(snapshot.Stage)),
		zap.Error(cause))
	o.journal(ctx, snapshot)
	return cause
}

// fail moves the transfer to Failed and returns the cause
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, res direction.Resolution, cause error) error {
	tracing.RecordError(span, cause)
	if err := o.transition(ctx, entities.StageFailed, func(s *entities.TransferState) {
		o.failure = cause
		s.ErrorCode = domainerrors.KindOf(cause)
		s.ErrorMessage = cause.Error()
	}); err != nil {
		return err
	}

	snapshot := o.State()
	metrics.RecordTransfer("failed", string(res.Direction))
	o.logger.Error("Transfer failed",
		zap.String("transfer_id", snapshot.ID.String()),
		zap.String("error_code", snapshot.ErrorCode),
		zap.String("source_tx_hash", snapshot.SourceTxHash),
		zap.Bool("partial", snapshot.Partial()),
		zap.Error(cause))
	return cause
}

// transition validates and applies a stage change, journals it and emits
// progress. mutate runs under the lock. The step counter never decreases.
func (o *Orchestrator) transition(ctx context.Context, next entities.TransferStage, mutate func(*entities.TransferState)) error {
	o.mu.Lock()
	if err := o.state.Stage.ValidateTransition(next); err != nil {
		o.mu.Unlock()
		return err
	}
	if mutate != nil {
		mutate(&o.state)
	}
	o.state.Stage = next
	if step := next.Step(); step > o.state.Step {
		o.state.Step = step
	}
	o.state.UpdatedAt = o.now()
	snapshot := o.state.Clone()
	labels := o.labels
	o.mu.Unlock()

	metrics.StageTransitionsTotal.WithLabelValues(string(next)).Inc()
	o.logger.Debug("Transfer stage changed",
		zap.String("transfer_id", snapshot.ID.String()),
		zap.String("stage", string(next)),
		zap.Int("step", snapshot.Step))

	o.journal(ctx, snapshot)
	o.emit(snapshot, labels)
	return nil
}

func (o *Orchestrator) journal(ctx context.Context, snapshot entities.TransferState) {
	if o.repo == nil {
		return
	}
	if err := o.repo.Update(context.WithoutCancel(ctx), &snapshot); err != nil {
		o.logger.Warn("Failed to journal transfer",
			zap.String("transfer_id", snapshot.ID.String()),
			zap.String("stage", string(snapshot.Stage)),
			zap.Error(err))
	}
}

func (o *Orchestrator) emit(s entities.TransferState, labels []string) {
	p := Progress{
		TransferID:        s.ID,
		Stage:             s.Stage,
		Direction:         s.Direction,
		Step:              s.Step,
		TotalSteps:        entities.TotalSteps,
		Status:            statusFor(s.Stage, s.Step, labels, s.ErrorMessage),
		SourceTxHash:      s.SourceTxHash,
		DestinationTxHash: s.DestinationTxHash,
	}
	if s.Stage == entities.StageReleased {
		if dst, ok := o.resolver.Lookup(s.DestinationNetwork); ok {
			p.ExplorerURL = dst.ExplorerTxURL(s.DestinationTxHash)
		}
	}

	o.mu.Lock()
	if s.Stage == entities.StageFailed {
		p.Err = o.failure
	}
	handler := o.handler
	for ch := range o.subscribers {
		select {
		case ch <- p:
		default:
			o.logger.Debug("Dropping progress event for slow subscriber", zap.String("stage", string(p.Stage)))
		}
	}
	o.mu.Unlock()

	if handler != nil {
		handler(p)
	}
}

func (o *Orchestrator) startSpan(ctx context.Context, name string, res direction.Resolution) (context.Context, trace.Span) {
	s := o.State()
	return o.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("transfer_id", s.ID.String()),
		attribute.Int64("token_id", int64(s.TokenID)),
		attribute.String("source", res.Source.ID),
		attribute.String("destination", res.Destination.ID),
		attribute.String("direction", string(res.Direction)),
	))
}
