package statsig

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const requestQueueSize = 1000

type gateReply struct {
	results []GateEvaluation
	err     error
}

type configReply struct {
	results []ConfigEvaluation
	err     error
}

// batchRequest is either a *gateRequest or a *configRequest.
type batchRequest interface {
	// fail delivers err as the request's only reply.
	fail(err error)
}

type gateRequest struct {
	names []string
	user  User
	reply chan gateReply
}

func (r *gateRequest) fail(err error) { r.reply <- gateReply{err: err} }

type configRequest struct {
	names []string
	user  User
	reply chan configReply
}

func (r *configRequest) fail(err error) { r.reply <- configReply{err: err} }

// batcher coalesces lookups from many callers into few transport calls.
// A single goroutine owns the pending sets; callers only enqueue and wait.
type batcher struct {
	transport     evaluationTransport
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	requests     chan batchRequest
	shutdown     chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}

	pendingGates   []*gateRequest
	pendingConfigs []*configRequest
}

func newBatcher(transport evaluationTransport, batchSize int, flushInterval time.Duration, logger *zap.Logger) *batcher {
	return &batcher{
		transport:     transport,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		requests:      make(chan batchRequest, requestQueueSize),
		shutdown:      make(chan struct{}),
		stopped:       make(chan struct{}),
	}
}

// run is the batcher loop. When several wake conditions are ready it serves
// new requests first, then the flush timer, then shutdown.
// Flushes use ctx detached from cancellation, so shutdown never aborts a
// transport call that has already started.
func (b *batcher) run(ctx context.Context) {
	flushCtx := context.WithoutCancel(ctx)
	ticker := time.NewTicker(b.flushInterval)
	defer close(b.stopped)
	defer ticker.Stop()
	defer b.failPending()

	for {
		select {
		case req := <-b.requests:
			b.accept(flushCtx, req)
			continue
		default:
		}
		select {
		case <-ticker.C:
			b.flush(flushCtx)
			continue
		default:
		}
		select {
		case req := <-b.requests:
			b.accept(flushCtx, req)
		case <-ticker.C:
			b.flush(flushCtx)
		case <-b.shutdown:
			b.logger.Info("batch processor shutting down",
				zap.Int("pending_gates", len(b.pendingGates)),
				zap.Int("pending_configs", len(b.pendingConfigs)))
			return
		}
	}
}

func (b *batcher) accept(ctx context.Context, req batchRequest) {
	switch r := req.(type) {
	case *gateRequest:
		b.pendingGates = append(b.pendingGates, r)
	case *configRequest:
		b.pendingConfigs = append(b.pendingConfigs, r)
	}
	if len(b.pendingGates) >= b.batchSize || len(b.pendingConfigs) >= b.batchSize {
		b.flush(ctx)
	}
}

func (b *batcher) flush(ctx context.Context) {
	b.flushGates(ctx)
	b.flushConfigs(ctx)
}

// flushGates issues one transport call per distinct user and hands every
// request exactly the gates it asked for.
func (b *batcher) flushGates(ctx context.Context) {
	if len(b.pendingGates) == 0 {
		return
	}
	batch := b.pendingGates
	b.pendingGates = nil

	groups := make(map[string][]*gateRequest)
	var order []string
	for _, req := range batch {
		hash := req.user.Hash()
		if _, seen := groups[hash]; !seen {
			order = append(order, hash)
		}
		groups[hash] = append(groups[hash], req)
	}

	for _, hash := range order {
		group := groups[hash]
		names := unionNames(group)
		results, fetchErr := b.transport.checkGates(ctx, names, group[0].user)
		if fetchErr != nil {
			b.logger.Error("failed to fetch gates",
				zap.Int("requests", len(group)),
				zap.Strings("gates", names),
				zap.Error(fetchErr))
			for _, req := range group {
				req.reply <- gateReply{err: cloneError(fetchErr)}
			}
			continue
		}
		for _, req := range group {
			req.reply <- gateReply{results: filterGates(results, req.names)}
		}
	}
}

// flushConfigs issues one transport call per requested config name.
// The first failure aborts the remaining names of that request.
func (b *batcher) flushConfigs(ctx context.Context) {
	if len(b.pendingConfigs) == 0 {
		return
	}
	batch := b.pendingConfigs
	b.pendingConfigs = nil

	for _, req := range batch {
		results := make([]ConfigEvaluation, 0, len(req.names))
		var fetchErr error
		for _, name := range req.names {
			evaluation, err := b.transport.getConfig(ctx, name, req.user)
			if err != nil {
				fetchErr = err
				break
			}
			results = append(results, evaluation)
		}
		if fetchErr != nil {
			b.logger.Error("failed to fetch configs", zap.Strings("configs", req.names), zap.Error(fetchErr))
			req.reply <- configReply{err: fetchErr}
			continue
		}
		req.reply <- configReply{results: results}
	}
}

// failPending answers every request the loop still holds, including those
// left in the queue.
func (b *batcher) failPending() {
	unavailable := newError(KindBatchProcessor, "batch processor shut down")
	for _, req := range b.pendingGates {
		req.fail(unavailable.clone())
	}
	for _, req := range b.pendingConfigs {
		req.fail(unavailable.clone())
	}
	b.pendingGates = nil
	b.pendingConfigs = nil
	for {
		select {
		case req := <-b.requests:
			req.fail(unavailable.clone())
		default:
			return
		}
	}
}

func unionNames(group []*gateRequest) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, req := range group {
		for _, name := range req.names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

func filterGates(results []GateEvaluation, names []string) []GateEvaluation {
	filtered := make([]GateEvaluation, 0, len(names))
	for _, result := range results {
		if slices.Contains(names, result.Name) {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// submit enqueues req unless the batcher has stopped.
func (b *batcher) submit(ctx context.Context, req batchRequest) error {
	select {
	case <-b.stopped:
		return newError(KindBatchProcessor, "batch processor channel closed")
	default:
	}
	select {
	case b.requests <- req:
		return nil
	case <-b.stopped:
		return newError(KindBatchProcessor, "batch processor channel closed")
	case <-ctx.Done():
		return wrapError(KindNetwork, ctx.Err())
	}
}

// awaitReply waits for the single reply of a submitted request.
func awaitReply[T any](ctx context.Context, reply <-chan T, stopped <-chan struct{}) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r, nil
	case <-stopped:
		// The loop may have answered just before stopping.
		select {
		case r := <-reply:
			return r, nil
		default:
			return zero, newError(KindBatchProcessor, "batch processor response channel closed")
		}
	case <-ctx.Done():
		return zero, wrapError(KindNetwork, ctx.Err())
	}
}

func (b *batcher) checkGates(ctx context.Context, names []string, user User) ([]GateEvaluation, error) {
	req := &gateRequest{names: names, user: user, reply: make(chan gateReply, 1)}
	if err := b.submit(ctx, req); err != nil {
		return nil, err
	}
	reply, err := awaitReply(ctx, req.reply, b.stopped)
	if err != nil {
		return nil, err
	}
	return reply.results, reply.err
}

func (b *batcher) getConfigs(ctx context.Context, names []string, user User) ([]ConfigEvaluation, error) {
	req := &configRequest{names: names, user: user, reply: make(chan configReply, 1)}
	if err := b.submit(ctx, req); err != nil {
		return nil, err
	}
	reply, err := awaitReply(ctx, req.reply, b.stopped)
	if err != nil {
		return nil, err
	}
	return reply.results, reply.err
}

// close signals shutdown once and waits for the loop to exit.
func (b *batcher) close() {
	b.shutdownOnce.Do(func() { close(b.shutdown) })
	<-b.stopped
}
