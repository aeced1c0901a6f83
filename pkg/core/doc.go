/*
Package core wires every collaborator package into one running
instance. The ingress pipeline is composed as a plugin like any other:
ingressTicker's Tick method is what actually calls Pipeline.PerTick,
which means application plugins registered before or after it via Use
share the same registration-order guarantee the tick loop gives every
other hook.

WithDatabase is optional — a Core with no database configured still
runs the full tick/ingress/pool machinery, it just never wires a
dbgateway.Gateway or database-backed transaction flush; Txn remains
usable as a pure in-memory op-ordering structure in that mode.
*/
package core
