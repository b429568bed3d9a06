package datastore

import (
	"errors"
	"sort"
	"sync"

	"github.com/chirpnet/chirp/pkg/types"
)

// Validation failures surfaced by Store operations. The dispatch loop
// maps them to wire return codes; they are not logged as errors.
var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Store is the authoritative in-memory state: users, the follow graph,
// the global post log and private conversations. The serving loop is
// strictly serial, but the mutex keeps the store safe for direct use
// from tests and embedded setups.
type Store struct {
	mu         sync.Mutex
	users      map[string]int // username -> id
	topics     map[int]string
	followers  map[int][]int
	posts      []types.Post
	private    map[string]map[string][]types.PrivateMessage
	nextUserID int
}

// NewStore creates an empty store. User ids start at 1.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]int),
		topics:     make(map[int]string),
		followers:  make(map[int][]int),
		private:    make(map[string]map[string][]types.PrivateMessage),
		nextUserID: 1,
	}
}

// AddUser registers username and returns its assigned id and
// notification topic. Ids are never reused, even across failed attempts.
func (s *Store) AddUser(username string) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.users[username]; taken {
		return 0, "", ErrUsernameTaken
	}

	id := s.nextUserID
	s.nextUserID++
	topic := types.NotifyTopic(id)

	s.users[username] = id
	s.topics[id] = topic
	s.followers[id] = []int{}
	return id, topic, nil
}

// UserID resolves username to its id, or -1 if unknown.
func (s *Store) UserID(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.users[username]; ok {
		return id
	}
	return -1
}

// UserTopic returns the notification topic for id, or "" if unknown.
func (s *Store) UserTopic(id int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[id]
}

// AddPost appends p to the post log, keeping the log sorted ascending by
// send timestamp. ISO-8601 strings compare lexicographically in
// chronological order.
func (s *Store) AddPost(p types.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = append(s.posts, p)
	sort.SliceStable(s.posts, func(i, j int) bool {
		return s.posts[i].TempoEnvioMensagem < s.posts[j].TempoEnvioMensagem
	})
}

// Posts returns a copy of the post log in timeline order.
func (s *Store) Posts() []types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// AddFollower records followerID as a follower of the named user.
// Following yourself is rejected; re-following is accepted and
// deduplicated.
func (s *Store) AddFollower(followerID int, toFollow string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	followeeID, ok := s.users[toFollow]
	if !ok {
		return ErrUserNotFound
	}
	if followeeID == followerID {
		return ErrInvalidParameter
	}

	for _, id := range s.followers[followeeID] {
		if id == followerID {
			return nil
		}
	}
	s.followers[followeeID] = append(s.followers[followeeID], followerID)
	return nil
}

// Followers returns the follower ids of a user; empty for unknown ids.
func (s *Store) Followers(id int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int, len(s.followers[id]))
	copy(out, s.followers[id])
	return out
}

// AddPrivateMessage stores one direct message under both ends of the
// conversation, each side kept sorted ascending by timestamp. Sender and
// recipient must be distinct existing users.
func (s *Store) AddPrivateMessage(sender, recipient, text string, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sender == recipient {
		return ErrInvalidParameter
	}
	if _, ok := s.users[sender]; !ok {
		return ErrInvalidParameter
	}
	if _, ok := s.users[recipient]; !ok {
		return ErrInvalidParameter
	}

	msg := types.PrivateMessage{Text: text, Timestamp: timestamp, Sender: sender}
	for _, pair := range [][2]string{{sender, recipient}, {recipient, sender}} {
		a, b := pair[0], pair[1]
		if s.private[a] == nil {
			s.private[a] = make(map[string][]types.PrivateMessage)
		}
		list := append(s.private[a][b], msg)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp < list[j].Timestamp
		})
		s.private[a][b] = list
	}
	return nil
}

// PrivateMessages returns the conversation as stored from the sender's
// perspective; empty when there is none.
func (s *Store) PrivateMessages(sender, recipient string) []types.PrivateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.private[sender][recipient]
	out := make([]types.PrivateMessage, len(list))
	copy(out, list)
	return out
}
