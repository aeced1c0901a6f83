/*
Package txn is the transaction engine: every application entity that
touches persistent state owns one model.Transaction, and this package
drives its advance/flush cycle once per tick.

advance() walks a collection's op queue from first_id, stopping at the
first in-flight batch, the first unmet dependency, or the first op that
would mix a callable into a bulk run (or vice versa). Whatever
contiguous homogeneous run it marks pending is handed to dispatch(),
which runs a bulk write or a sequence of callables on the database
fiber pool and marks every op in the batch done once the database
round-trip returns — even on error, so the queue keeps draining at
most-once.

FlagDeletion/UnflagDeletion implement the deletion handshake: a flagged
transaction is dropped by Engine.Tick once every collection is fully
drained and its last op is done.
*/
package txn
