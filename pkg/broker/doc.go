/*
Package broker implements the front-door process: a transparent load
balancer for client requests and the cluster control plane.

The broker owns five sockets and runs one goroutine per concern:

	┌───────────────────────── BROKER ─────────────────────────┐
	│                                                           │
	│  clients ──► ROUTER :5555 ──┐                             │
	│                             │  forward (identity kept)    │
	│  servers ◄── DEALER :6000 ◄─┘                             │
	│                                                           │
	│  servers ──► REP    :6001  control loop                   │
	│              (register, list, who_is_leader,              │
	│               sync_clock, notify_users)                   │
	│                                                           │
	│  servers ──► PULL   :6015  heartbeat ingest ─┐            │
	│                                              ▼            │
	│                          Registry (one mutex:             │
	│                          id counter, membership,          │
	│                          last heartbeat per id)           │
	│                                              ▲            │
	│                          liveness sweep, 1 Hz ┘           │
	│                                                           │
	│  everyone ◄── PUB   :6010  Publisher (serialized writes)  │
	└───────────────────────────────────────────────────────────┘

# Request forwarding

Frames move verbatim between the ROUTER and DEALER sockets in both
directions. The ROUTER's identity envelope is preserved, so a reply
finds its way back to the client that sent the request, and the DEALER
side distributes requests round-robin across whatever app servers are
currently attached.

# Membership and election

Registration hands out strictly increasing server ids and stamps an
initial heartbeat. The sweep evicts any id whose last heartbeat is
older than the timeout; an evicted id is never reused. Election is
implicit in membership: the leader is simply the highest live id, so
there are no vote rounds and a membership change is also a leadership
change.

# Notification bus

Publications are single string frames, "<topic> <payload>", and
subscribers filter by topic prefix. Delivery is at-most-once by design;
the Publisher goroutine serializes socket writes but never retries a
missed subscriber.
*/
package broker
