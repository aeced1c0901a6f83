/*
Package metrics exposes Prometheus instrumentation for the tick loop,
ingress pipeline, transaction engine, object pools, and database
gateway, plus HTTP health/readiness/liveness handlers for the admin
surface.

# Metric families

	tick loop:     realtimecore_tick_interval_seconds, _tick_duration_seconds, _ticks_total
	ingress:       realtimecore_ingress_stripe_depth{stripe}, _known_peers, _datagrams_total, _disconnects_total
	pools:         realtimecore_pool_outstanding{pool}, _pool_slab_allocs_total{pool}
	transactions:  realtimecore_txn_flush_duration_seconds, _ops_batched_total{kind}, _pending_callables, _dependency_stalls_total
	db gateway:    realtimecore_db_ensure_creation_retries_total, _db_errors_total{operation}

All metrics register themselves against the default Prometheus registry
in init(), matching the package-scope declaration style used throughout
this module's dependencies.

# Health

RegisterComponent/UpdateComponent track liveness of named subsystems.
GetReadiness treats "network", "pools", and "ingress" as critical: a
missing or unhealthy entry for any of the three makes /ready report
not_ready, since none of those three can come up out of order without
the core being unable to do useful work.
*/
package metrics
