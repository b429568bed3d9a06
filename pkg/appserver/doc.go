/*
Package appserver implements the stateless request workers. An app
server holds no user data; it pulls requests from the broker backend,
consults the data store, and takes part in the cluster control plane.

Each server runs several concurrent loops:

  - request loop: REP socket dialed into the broker backend; parses the
    action, dispatches to a handler, replies. A failed request is
    answered with ret -1 and the loop continues.
  - heartbeat loop: pushes "HEARTBEAT <id>" to the broker every 2s.
  - membership refresh: caches list_servers every 10s (diagnostics).
  - election loop: asks who_is_leader every 12s; when the answer is this
    server's id, broadcasts the wall time via sync_clock.
  - clock-sync subscriber: adopts "clock_sync <ts>" broadcasts into the
    local clock.
  - drift loop: perturbs the local clock by ±1s every 5s to simulate
    hardware skew.
  - clock report: logs the local clock every 10s so convergence after a
    sync broadcast is visible across servers.

The local clock is a single atomic float64 cell; no invariant ties it
to any other state, so the loops never need a common lock.

Handlers depend on the DataStore and ControlPlane interfaces rather
than sockets, so tests exercise the full dispatch path with in-memory
stubs. The post_text handler is the one with ordering semantics: the
post is stored and the follower fan-out is acknowledged by the broker
before the client sees the reply.
*/
package appserver
