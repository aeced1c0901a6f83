// Package core is the composition root: it wires the UDP socket, the
// two fiber pools, the ingress pipeline, an optional database gateway,
// and the plugin registry into one running instance, and exposes
// Start/Stop over that instance's lifecycle.
package core

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fenwickgames/realtimecore/pkg/dbgateway"
	"github.com/fenwickgames/realtimecore/pkg/events"
	"github.com/fenwickgames/realtimecore/pkg/fiberpool"
	"github.com/fenwickgames/realtimecore/pkg/ingress"
	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/model"
	"github.com/fenwickgames/realtimecore/pkg/netio"
	"github.com/fenwickgames/realtimecore/pkg/plugin"
	"github.com/fenwickgames/realtimecore/pkg/pool"
	"github.com/fenwickgames/realtimecore/pkg/tickloop"
	"github.com/fenwickgames/realtimecore/pkg/txn"
	"github.com/fenwickgames/realtimecore/pkg/uid"
)

// Config carries the startup parameters of the tick loop constructor.
type Config struct {
	Addr       string
	NCore      int
	NNet       int
	NDB        int
	Stripes    int
	Heartbeat  time.Duration
	JoinPools  bool
	InstanceID string
}

// Core owns every collaborator and runs the composed tick-driven
// server.
type Core struct {
	cfg Config

	Socket   *netio.Socket
	Ingress  *ingress.Pipeline
	Buffers  *pool.Pool[model.PacketBuffer]
	Endpoint *pool.Pool[model.Endpoint]
	Txn      *txn.Engine
	DB       *dbgateway.Gateway
	IDs      *uid.Generator
	Events   *events.Broker

	registry    plugin.Registry
	ingressTick *ingressTicker
	loop        *tickloop.Loop
	corePool    *fiberpool.Pool
	dbPool      *fiberpool.Pool
	counter     *fiberpool.Counter
}

// New builds a Core from cfg. The database gateway is wired separately
// via WithDatabase before Start, matching the "database is optional"
// rule.
func New(cfg Config) (*Core, error) {
	ids, err := uid.New()
	if err != nil {
		return nil, err
	}

	socket, err := netio.Listen(cfg.Addr)
	if err != nil {
		return nil, err
	}

	buffers := pool.New[model.PacketBuffer]("packet_buffer", 256)
	endpoints := pool.New[model.Endpoint]("endpoint", 256)
	ingressPipeline := ingress.New(cfg.Stripes, buffers)

	corePool := fiberpool.New("core", 4096)
	txnEngine := txn.NewEngine(nil) // reassigned once the DB pool exists, see WithDatabase
	broker := events.NewBroker()
	txnEngine.SetEvents(broker)

	c := &Core{
		cfg:      cfg,
		Socket:   socket,
		Ingress:  ingressPipeline,
		Buffers:  buffers,
		Endpoint: endpoints,
		Txn:      txnEngine,
		IDs:      ids,
		Events:   broker,
		corePool: corePool,
		counter:  fiberpool.NewCounter(),
	}
	c.ingressTick = &ingressTicker{core: c}
	c.registry.Use(c.ingressTick)
	// Registering the pipeline itself routes every arriving datagram
	// through the registry's NetworkPacketHandler capability, so
	// application plugins registered via Use see raw packets too.
	c.registry.Use(ingressPipeline)
	socket.Configure(&bufferAdapter{buffers}, &c.registry)
	return c, nil
}

// bufferAdapter narrows pool.Pool[model.PacketBuffer] to netio.BufferPool.
type bufferAdapter struct {
	p *pool.Pool[model.PacketBuffer]
}

func (b *bufferAdapter) Get(workerID uint32) *model.PacketBuffer { return b.p.Get(workerID) }
func (b *bufferAdapter) Release(v *model.PacketBuffer)           { b.p.Release(v) }

// ingressTicker adapts the ingress pipeline's per-tick drain into the
// plugin Ticker interface, so it composes with application plugins
// through the same registration order as everything else.
type ingressTicker struct {
	core         *Core
	newClient    ingress.NewClientFunc
	clientInputs ingress.ClientInputsFunc
	disconnected ingress.DisconnectedFunc
}

func (t *ingressTicker) Tick(diff time.Duration) {
	t.core.Ingress.PerTick(t.core.corePool, t.core.counter, t.newClient, t.clientInputs, t.disconnected)
}

// OnClient registers the new_client/client_inputs/on_disconnected
// application callbacks the ingress pipeline drives each tick. Every
// connect and disconnect is also published on c.Events.
func (c *Core) OnClient(newClient ingress.NewClientFunc, clientInputs ingress.ClientInputsFunc, disconnected ingress.DisconnectedFunc) {
	c.ingressTick.newClient = func(ep model.Endpoint) {
		c.Events.Publish(&events.Event{Type: events.EventPeerConnected, Message: ep.Addr.String()})
		if newClient != nil {
			newClient(ep)
		}
	}
	c.ingressTick.clientInputs = clientInputs
	c.ingressTick.disconnected = func(ep model.Endpoint) {
		c.Events.Publish(&events.Event{Type: events.EventPeerDisconnected, Message: ep.Addr.String()})
		if disconnected != nil {
			disconnected(ep)
		}
	}
}

// Use registers an additional application plugin.
func (c *Core) Use(p any) {
	c.registry.Use(p)
}

// WithDatabase wires a Mongo client into the core: a dedicated database
// fiber pool is created, the transaction engine is rebuilt against it,
// and a dbgateway.Gateway is constructed for application use.
func (c *Core) WithDatabase(ctx context.Context, client *mongo.Client, dbName string) error {
	c.dbPool = fiberpool.New("db", 4096)
	gw, err := dbgateway.New(ctx, client, dbName, c.dbPool, c.IDs)
	if err != nil {
		return err
	}
	c.DB = gw
	c.Txn = txn.NewEngine(c.dbPool)
	c.Txn.SetEvents(c.Events)
	return nil
}

// Start brings the composed core up: network receive goroutines, the
// database pool (if configured), the main tick fiber, then the core
// pool's own workers.
func (c *Core) Start(ctx context.Context) {
	c.Events.Start()
	c.loop = &tickloop.Loop{
		Heartbeat: c.cfg.Heartbeat,
		Clock:     tickloop.RealClock,
		Registry:  &c.registry,
		CorePool:  c.corePool,
		NCore:     c.cfg.NCore,
		JoinPool:  c.cfg.JoinPools,
		DBPool:    c.dbPool,
		NDB:       c.cfg.NDB,
		Network:   c.Socket,
		NNet:      c.cfg.NNet,
		Events:    c.Events,
	}
	log.WithComponent("core").Info().Str("addr", c.cfg.Addr).Int("stripes", c.cfg.Stripes).Msg("starting core")
	c.loop.Start(ctx)
}

// Stop tears the core down, draining both pools and the network socket.
func (c *Core) Stop() {
	if c.loop != nil {
		c.loop.Stop()
	}
	c.Events.Stop()
}

// TickStats returns the running tick loop's current cadence snapshot,
// or the zero value if the core has not been started yet.
func (c *Core) TickStats() tickloop.Stats {
	if c.loop == nil {
		return tickloop.Stats{}
	}
	return c.loop.Stats()
}

// InstanceID, StripeDepths, KnownPeers, PendingDisconnects, TxnStats and
// PoolStats implement adminapi.Source without pkg/core importing
// pkg/adminapi.

func (c *Core) InstanceID() string      { return c.cfg.InstanceID }
func (c *Core) StripeDepths() []int     { return c.Ingress.StripeDepths() }
func (c *Core) KnownPeers() int         { return c.Ingress.KnownPeers() }
func (c *Core) PendingDisconnects() int { return c.Ingress.PendingDisconnects() }

func (c *Core) TxnStats(entityID string) ([]txn.CollectionStat, bool) {
	return c.Txn.Stats(entityID)
}

// PoolStats reports occupancy for the pool registered under name
// ("packet_buffer" or "endpoint").
func (c *Core) PoolStats(name string) (slabAllocs, queueDepth, outstanding int64, ok bool) {
	switch name {
	case c.Buffers.Name():
		return c.Buffers.SlabAllocs(), c.Buffers.QueueDepth(), c.Buffers.Outstanding(), true
	case c.Endpoint.Name():
		return c.Endpoint.SlabAllocs(), c.Endpoint.QueueDepth(), c.Endpoint.Outstanding(), true
	default:
		return 0, 0, 0, false
	}
}

// TickEngine runs the transaction engine's tick step once per core
// tick; callers wire it in as a plugin.Ticker alongside application
// logic, e.g. c.Use(c.TickEngine(db, droppable)).
func (c *Core) TickEngine(db *mongo.Database, droppable func(entityID string)) plugin.Ticker {
	return &txnTicker{engine: c.Txn, db: db, droppable: droppable}
}

type txnTicker struct {
	engine    *txn.Engine
	db        *mongo.Database
	droppable func(entityID string)
}

func (t *txnTicker) Tick(diff time.Duration) {
	t.engine.Tick(context.Background(), t.db, uint32(diff.Milliseconds()), t.droppable)
}
