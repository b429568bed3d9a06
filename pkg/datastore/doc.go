/*
Package datastore implements the central authoritative state: users,
the follow graph, the global post log and private conversations.

The store is in-memory and intentionally non-durable; log output is the
only artifact that survives a restart. The Server wraps the store in a
REP socket loop that processes requests strictly serially, so handlers
never contend and no operation suspends.

Semantics worth noting:

  - user ids are assigned monotonically and never reused; a failed
    signup does not burn an id.
  - the post log re-sorts on insert by the ISO-8601 send timestamp, so
    a back-dated post lands in its chronological position.
  - follower lists reject self-follows and silently deduplicate
    repeated follows.
  - a private message is stored under both conversation ends and the
    two mirrored lists always agree in content and order.
*/
package datastore
