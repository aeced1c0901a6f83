// Package txn implements the transaction engine: per-entity, per-
// collection ordered operation queues, dependency barriers between
// entities, homogeneous bulk/callable batching, and the deletion
// handshake.
package txn

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fenwickgames/realtimecore/pkg/events"
	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
	"github.com/fenwickgames/realtimecore/pkg/model"
)

// FiberPool is the subset of the fiber-pool contract the engine needs
// to dispatch a batch without blocking the tick goroutine.
type FiberPool interface {
	Push(fn func())
}

// EventSink is the subset of events.Broker the engine needs to report
// flushes and deletions.
type EventSink interface {
	Publish(event *events.Event)
}

// Engine owns every live Transaction and drives their advance/flush
// cycle once per tick.
type Engine struct {
	pool   FiberPool
	events EventSink

	mu           sync.RWMutex
	transactions map[string]*model.Transaction
}

func NewEngine(pool FiberPool) *Engine {
	return &Engine{pool: pool, transactions: make(map[string]*model.Transaction)}
}

// SetEvents attaches an optional event sink; nil disables publishing.
func (e *Engine) SetEvents(sink EventSink) {
	e.events = sink
}

// Transaction returns the transaction for entityID, creating it with
// the given flush cadence if it does not already exist.
func (e *Engine) Transaction(entityID string, executeEvery uint32) *model.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.transactions[entityID]
	if !ok {
		t = model.NewTransaction(entityID, executeEvery)
		e.transactions[entityID] = t
	}
	return t
}

// resolver looks up another entity's transaction, used for dependency
// barrier checks. It never creates a transaction that doesn't exist.
func (e *Engine) resolver() model.Resolver {
	return func(entityID string) (*model.Transaction, bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		t, ok := e.transactions[entityID]
		return t, ok
	}
}

// CollectionStat snapshots one collection's op-queue bounds for the
// admin surface.
type CollectionStat struct {
	Name             string
	FirstID          uint64
	CurrentID        uint64
	PendingCallables int64
}

// Stats returns a snapshot of entityID's collections, or false if no
// transaction is live for it.
func (e *Engine) Stats(entityID string) ([]CollectionStat, bool) {
	e.mu.RLock()
	t, ok := e.transactions[entityID]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}

	t.Mu.Lock()
	defer t.Mu.Unlock()
	stats := make([]CollectionStat, 0, len(t.Collections))
	for name, c := range t.Collections {
		stats = append(stats, CollectionStat{
			Name:             name,
			FirstID:          c.FirstID,
			CurrentID:        c.CurrentID.Load(),
			PendingCallables: t.PendingCallableCount.Load(),
		})
	}
	return stats, true
}

// Drop removes entityID's transaction from the engine. Callers must
// only do this once Transaction.ScheduledForDelete is true.
func (e *Engine) Drop(entityID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.transactions, entityID)
}

// Push appends a new op to collection in t, assigns it a monotonic
// op_id, and returns that id.
func Push(t *model.Transaction, collection string, info *model.TransactionInfo) uint64 {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	c := t.Collection(collection)
	id := c.NextOpID(info)
	if info.OpType == model.OpCallable {
		t.PendingCallableCount.Add(1)
	}
	return id
}

// Tick runs the update step for every live transaction and dispatches
// whatever batches became eligible. droppable receives entity ids whose
// transaction just finished the deletion handshake and should be
// removed from the caller's own entity registry.
func (e *Engine) Tick(ctx context.Context, db *mongo.Database, diff uint32, droppable func(entityID string)) {
	e.mu.RLock()
	entities := make([]*model.Transaction, 0, len(e.transactions))
	for _, t := range e.transactions {
		entities = append(entities, t)
	}
	e.mu.RUnlock()

	resolve := e.resolver()
	var pendingCallables int64
	for _, t := range entities {
		alive := e.update(ctx, db, t, diff, resolve)
		pendingCallables += t.PendingCallableCount.Load()
		if !alive {
			e.Drop(t.EntityID)
			if e.events != nil {
				e.events.Publish(&events.Event{Type: events.EventTxnDeleted, Message: t.EntityID})
			}
			if droppable != nil {
				droppable(t.EntityID)
			}
		}
	}
	metrics.TxnPendingCallables.Set(float64(pendingCallables))
}

// update runs the update(diff) step for one transaction: the
// flush-triggering check, the deletion handshake, and a per-collection
// advance() pass. Returns false once the transaction should be dropped
// by the caller.
func (e *Engine) update(ctx context.Context, db *mongo.Database, t *model.Transaction, diff uint32, resolve model.Resolver) bool {
	t.Mu.Lock()
	t.SinceLast += diff
	shouldRun := t.SinceLast >= t.ExecuteEvery || t.PendingCallableCount.Load() > 0
	if !shouldRun {
		t.Mu.Unlock()
		return true
	}
	t.SinceLast = 0

	drained := true
	for name, c := range t.Collections {
		b := advance(name, c, resolve)
		if len(b.ops) == 0 {
			if c.FirstID != c.CurrentID.Load() {
				drained = false
			}
			continue
		}
		drained = false
		if b.isCallable {
			// A callable transitions into pending exactly once here; the
			// counter is never re-incremented for the same op.
			t.PendingCallableCount.Add(-int64(len(b.ops)))
		}
		e.dispatch(ctx, db, t, name, b)
	}

	scheduleDelete := t.Flagged && drained && lastVisitedDoneLocked(t)
	if scheduleDelete {
		t.ScheduledForDelete = true
	}
	t.Mu.Unlock()

	return !scheduleDelete
}

// lastVisitedDoneLocked reports whether every collection in t is fully
// drained (first_id == current_id) and its final op is done. Caller
// must hold t.Mu.
func lastVisitedDoneLocked(t *model.Transaction) bool {
	for _, c := range t.Collections {
		if c.FirstID != c.CurrentID.Load() {
			return false
		}
		if c.FirstID == 0 {
			continue
		}
		last, ok := c.Ops[c.FirstID-1]
		if ok && !last.Done {
			return false
		}
	}
	return true
}

// FlagDeletion marks t for the deletion handshake; the next Tick that
// finds every collection drained and its last op done will drop it.
func FlagDeletion(t *model.Transaction) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	t.Flagged = true
}

// UnflagDeletion cancels a pending deletion handshake.
func UnflagDeletion(t *model.Transaction) {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	t.Flagged = false
	t.ScheduledForDelete = false
}

type batch struct {
	isCallable bool
	ops        []*model.TransactionInfo
}

// advance walks a single collection's op queue from first_id, returning
// the contiguous homogeneous run of ops it marked pending (possibly
// empty). collection is the queue's own name, passed through to
// dependencyBlocked so a dependency is only ever resolved against the
// same collection in the owning entity's transaction. Caller must hold
// t.Mu.
func advance(collection string, c *model.CollectionInfo, resolve model.Resolver) batch {
	var b batch
	i := c.FirstID
	limit := c.CurrentID.Load()

	for i < limit {
		op, ok := c.Ops[i]
		if !ok {
			log.FatalField("missing transaction entry in [first_id, current_id)", "op_id", i)
			return b
		}
		if op.Pending {
			break
		}
		if op.Done {
			i++
			continue
		}
		if op.Dependency != nil {
			if owner, ok := resolve(op.Dependency.OwnerEntityID); ok {
				if dependencyBlocked(owner, collection, op.Dependency.OpID) {
					metrics.TxnDependencyStallsTotal.Inc()
					break
				}
			} else {
				metrics.TxnDependencyStallsTotal.Inc()
				break
			}
		}

		isCallable := op.OpType == model.OpCallable
		if len(b.ops) > 0 && isCallable != b.isCallable {
			break
		}
		if len(b.ops) == 0 {
			b.isCallable = isCallable
		}
		op.Pending = true
		b.ops = append(b.ops, op)
		i++
	}
	c.FirstID = i
	return b
}

// dependencyBlocked reports whether the op identified by opID in
// owner's collection named collection (the same collection as the
// dependent op, not any collection of owner's) is still outstanding.
// A missing collection or op is treated as unresolved rather than
// unblocking the dependency.
func dependencyBlocked(owner *model.Transaction, collection string, opID uint64) bool {
	owner.Mu.Lock()
	defer owner.Mu.Unlock()
	c, ok := owner.Collections[collection]
	if !ok {
		return true
	}
	info, ok := c.Ops[opID]
	if !ok {
		return true
	}
	return !info.Done
}

// dispatch runs a batch on the database fiber pool: a bulk write for a
// bulk-eligible run, or sequential callable invocations for a callable
// run. Every op in the batch is marked Done and cleared of Pending once
// the batch completes, even on a bulk-write error, so the queue keeps
// draining (at-most-once semantics — the application must reconcile).
// t.Mu guards those completion writes since advance and
// lastVisitedDoneLocked read them from the tick goroutine while this
// batch runs on the database pool.
func (e *Engine) dispatch(ctx context.Context, db *mongo.Database, t *model.Transaction, collection string, b batch) {
	e.pool.Push(func() {
		coll := db.Collection(collection)
		timer := metrics.NewTimer()
		if b.isCallable {
			runCallables(ctx, coll, b)
		} else {
			runBulk(ctx, coll, b)
		}
		t.Mu.Lock()
		for _, op := range b.ops {
			op.Done = true
			op.Pending = false
		}
		t.Mu.Unlock()
		timer.ObserveDuration(metrics.TxnFlushDuration)
		if e.events != nil {
			e.events.Publish(&events.Event{Type: events.EventTxnFlushed, Message: collection})
		}
	})
}

func runBulk(ctx context.Context, coll *mongo.Collection, b batch) {
	models := make([]mongo.WriteModel, 0, len(b.ops))
	for _, op := range b.ops {
		models = append(models, writeModelFor(op))
	}

	_, err := coll.BulkWrite(ctx, models)
	if err != nil {
		metrics.DBErrorsTotal.WithLabelValues("bulk_write").Inc()
		log.WithComponent("txn").Error().Err(err).Msg("bulk write failed, marking ops done anyway")
	}
	metrics.TxnOpsBatchedTotal.WithLabelValues("bulk").Add(float64(len(b.ops)))
}

func runCallables(ctx context.Context, coll *mongo.Collection, b batch) {
	for _, op := range b.ops {
		if err := op.Callable(coll); err != nil {
			metrics.DBErrorsTotal.WithLabelValues("callable").Inc()
			log.WithComponent("txn").Error().Err(err).Msg("callable op failed, marking done anyway")
		}
	}
	metrics.TxnOpsBatchedTotal.WithLabelValues("callable").Add(float64(len(b.ops)))
	_ = ctx
}

func writeModelFor(op *model.TransactionInfo) mongo.WriteModel {
	switch op.OpType {
	case model.OpInsert:
		return mongo.NewInsertOneModel().SetDocument(op.Update)
	case model.OpUpdateOne:
		return mongo.NewUpdateOneModel().SetFilter(op.Filter).SetUpdate(op.Update)
	case model.OpUpdateMany:
		return mongo.NewUpdateManyModel().SetFilter(op.Filter).SetUpdate(op.Update)
	case model.OpUpsertOne:
		return mongo.NewUpdateOneModel().SetFilter(op.Filter).SetUpdate(op.Update).SetUpsert(true)
	case model.OpUpsertMany:
		return mongo.NewUpdateManyModel().SetFilter(op.Filter).SetUpdate(op.Update).SetUpsert(true)
	case model.OpDeleteOne:
		return mongo.NewDeleteOneModel().SetFilter(op.Filter)
	case model.OpDeleteMany:
		return mongo.NewDeleteManyModel().SetFilter(op.Filter)
	default:
		log.FatalField("non-bulk op reached writeModelFor", "op_type", int(op.OpType))
		return nil
	}
}
