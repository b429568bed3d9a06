package broker

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/chirpnet/chirp/pkg/metrics"
	"github.com/chirpnet/chirp/pkg/protocol"
	"github.com/chirpnet/chirp/pkg/types"
)

// controlLoop serves registration, membership, election, clock sync and
// notification fan-out on the control REP socket.
func (b *Broker) controlLoop() {
	defer b.wg.Done()

	for {
		msg, err := b.control.Recv()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("Failed to receive control request")
			continue
		}

		reply := b.handleControl(msg.Bytes())
		if err := b.control.Send(zmq4.NewMsg(reply)); err != nil {
			b.logger.Error().Err(err).Msg("Failed to send control reply")
		}
	}
}

func (b *Broker) handleControl(frame []byte) []byte {
	req, err := protocol.ParseControlRequest(frame)
	if err != nil {
		var unknown *protocol.UnknownActionError
		if errors.As(err, &unknown) {
			b.logger.Warn().Str("action", unknown.ActionName).Msg("Unknown control action")
		} else {
			b.logger.Error().Err(err).Msg("Malformed control frame")
		}
		return mustEncode(protocol.ControlError{Error: "Ação desconhecida"})
	}

	metrics.ControlRequestsTotal.WithLabelValues(req.ControlAction()).Inc()

	switch r := req.(type) {
	case *protocol.GetServerID:
		id := b.registry.Register(time.Now())
		metrics.ServersRegistered.Set(float64(b.registry.Len()))
		b.logger.Info().Int("server_id", id).Msg("Server registered")
		return mustEncode(protocol.ServerIDReply{ServerID: id})

	case *protocol.ListServers:
		ids := b.registry.Servers()
		servers := make([]string, len(ids))
		for i, id := range ids {
			servers[i] = strconv.Itoa(id)
		}
		return mustEncode(protocol.ServersReply{Servers: servers})

	case *protocol.WhoIsLeader:
		reply := protocol.LeaderReply{}
		if leader, ok := b.registry.Leader(); ok {
			reply.LeaderID = &leader
		}
		b.logger.Info().Interface("leader_id", reply.LeaderID).Msg("Leader queried")
		return mustEncode(reply)

	case *protocol.SyncClock:
		// No check that the caller is the leader; the protocol assumes a
		// cooperative environment and duplicate broadcasts are idempotent.
		b.publisher.Publish(types.ClockSyncTopic, strconv.FormatFloat(r.Timestamp, 'f', -1, 64))
		b.logger.Info().Float64("timestamp", r.Timestamp).Msg("Clock sync broadcast")
		return mustEncode(protocol.SyncClockReply{Status: "clock_sync_broadcasted", Timestamp: r.Timestamp})

	case *protocol.NotifyUsers:
		notified := b.notifyUsers(r)
		return mustEncode(protocol.NotifyUsersReply{Status: "ok", NotifiedUsers: notified})

	default:
		b.logger.Warn().Str("action", req.ControlAction()).Msg("Unhandled control action")
		return mustEncode(protocol.ControlError{Error: "Ação desconhecida"})
	}
}

// notifyUsers publishes the notification on each follower's topic and
// returns the follower ids that were offered delivery.
func (b *Broker) notifyUsers(r *protocol.NotifyUsers) []int {
	msg := r.Msg
	if msg == "" {
		msg = "Novo post do " + r.PostOwner + " disponível!"
	}

	notified := make([]int, 0, len(r.UsersToNotify))
	for rawID, topic := range r.UsersToNotify {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			b.logger.Warn().Str("user_id", rawID).Msg("Bad follower id in notify_users")
			continue
		}
		b.publisher.Publish(topic, msg)
		b.logger.Info().Str("topic", topic).Str("post_owner", r.PostOwner).Msg("Notification published")
		notified = append(notified, id)
	}
	sort.Ints(notified)
	return notified
}

func mustEncode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
