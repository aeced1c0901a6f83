/*
Package netio owns the UDP socket and its receive goroutines. Each
receive goroutine is tagged with a stripe id equal to its own index,
which it passes straight through to ingress.Pipeline.Arrival: the
receiving goroutine's own index is the stripe id, full stop.

Close unblocks every receive loop by closing the shared socket, which
turns a blocked ReadFromUDPAddrPort into a net.ErrClosed return.
*/
package netio
