/*
Package dbgateway wraps go.mongodb.org/mongo-driver behind the
document-database collaborator contract described by the core: a
client-pool handle, collection lookup, and an insert-with-unique-id
helper, with all driver calls scheduled onto a dedicated fiber pool
rather than run inline on the caller's goroutine.

EnsureCreation never asks the database to pick the next id; it draws one
from pkg/uid and retries only when the insert fails with a duplicate-key
error, which should be vanishingly rare given the id space. Any other
error is returned to the caller instead of retried forever.
*/
package dbgateway
