/*
Package client implements the end-user connection to the cluster: a
request socket through the broker frontend and a subscription to the
user's own notification topic.

Signup drives the rest of the lifecycle: a successful add_user carries
the assigned id and topic, the client subscribes to that topic, and a
background goroutine drains bus messages into a bounded local queue for
later display. Notifications are at-most-once; when the queue is full
the excess is dropped rather than blocking the bus.

The forced-delay knob back-dates outgoing timestamps (ISO-8601 on
posts, integer seconds on private messages) to exercise the cluster's
clock-skew handling; it is a test aid, not a user feature.

The interactive menu lives in the chirp command; this package is the
programmatic surface it drives.
*/
package client
