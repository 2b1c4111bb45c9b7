package engine

import (
	"context"
	"hash/fnv"

	"go.uber.org/zap"

	"matchd/domain/book"
)

// Router serializes submissions per symbol. Every symbol hashes to exactly
// one shard, and each shard is a single goroutine draining its queue, so
// two submissions for the same symbol can never race on a counter-entry.
// Different symbols proceed in parallel.
type Router struct {
	engine *Engine
	shards []chan submitJob
	log    *zap.Logger
}

type submitJob struct {
	ctx   context.Context
	req   book.OrderRequest
	reply chan submitResult
}

type submitResult struct {
	out Outcome
	err error
}

func NewRouter(e *Engine, shards int, log *zap.Logger) *Router {
	if shards <= 0 {
		shards = 1
	}
	r := &Router{
		engine: e,
		shards: make([]chan submitJob, shards),
		log:    log,
	}
	for i := range r.shards {
		r.shards[i] = make(chan submitJob)
	}
	return r
}

// Start launches the shard workers. They drain until ctx is cancelled.
func (r *Router) Start(ctx context.Context) {
	for i, ch := range r.shards {
		go r.run(ctx, i, ch)
	}
}

func (r *Router) run(ctx context.Context, id int, ch chan submitJob) {
	r.log.Debug("shard worker started", zap.Int("shard", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-ch:
			out, err := r.engine.Submit(job.ctx, job.req)
			job.reply <- submitResult{out: out, err: err}
		}
	}
}

// Submit routes the request to its symbol's shard and blocks until the
// engine reaches a terminal decision.
func (r *Router) Submit(ctx context.Context, req book.OrderRequest) (Outcome, error) {
	job := submitJob{
		ctx:   ctx,
		req:   req,
		reply: make(chan submitResult, 1),
	}

	select {
	case r.shards[r.shardFor(req.Symbol)] <- job:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case res := <-job.reply:
		return res.out, res.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (r *Router) shardFor(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(r.shards)))
}
