package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/finder-chat/internal/metrics"
)

// Registry maps conversation ids to the clients currently joined to them.
// It is process local; a room exists only while it has members.
type Registry struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	rooms       map[string]map[*Client]struct{} // conversation -> members
	memberships map[*Client]map[string]struct{} // client -> conversations
	log         zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		clients:     map[*Client]struct{}{},
		rooms:       map[string]map[*Client]struct{}{},
		memberships: map[*Client]map[string]struct{}{},
		log:         log.With().Str("component", "room-registry").Logger(),
	}
}

// Register tracks a newly connected client.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// Join adds c to the room. It reports false if c was already a member.
func (r *Registry) Join(conversationID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[conversationID]
	if !ok {
		members = map[*Client]struct{}{}
		r.rooms[conversationID] = members
	}
	if _, already := members[c]; already {
		return false
	}
	members[c] = struct{}{}

	if _, ok := r.memberships[c]; !ok {
		r.memberships[c] = map[string]struct{}{}
	}
	r.memberships[c][conversationID] = struct{}{}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
	return true
}

// Leave removes c from every room and forgets it. It returns the rooms c left.
func (r *Registry) Leave(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.memberships[c] {
		if members, ok := r.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
		left = append(left, room)
	}
	delete(r.memberships, c)
	delete(r.clients, c)
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
	sort.Strings(left)
	return left
}

// Broadcast queues frame for every current member of the room, the sender
// included. Delivery to a slow client never blocks the others.
func (r *Registry) Broadcast(_ context.Context, conversationID string, frame []byte) error {
	r.mu.RLock()
	members := r.rooms[conversationID]
	snapshot := make([]*Client, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		if !c.Enqueue(frame) {
			r.log.Warn().Str("client_id", c.ID).Str("conversation_id", conversationID).Msg("dropped frame for slow or closed client")
		}
	}
	return nil
}

// IsMember reports whether c is currently joined to the room.
func (r *Registry) IsMember(conversationID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[conversationID][c]
	return ok
}

// Members returns the number of clients joined to the room.
func (r *Registry) Members(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

// RoomInfo is a snapshot of one active room.
type RoomInfo struct {
	ConversationID string `json:"conversationId"`
	Members        int    `json:"members"`
}

// Rooms lists active rooms sorted by conversation id.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, members := range r.rooms {
		out = append(out, RoomInfo{ConversationID: id, Members: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out
}

// Connections returns the number of registered clients.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close disconnects every client and empties the registry. Used at shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = map[*Client]struct{}{}
	r.rooms = map[string]map[*Client]struct{}{}
	r.memberships = map[*Client]map[string]struct{}{}
	r.mu.Unlock()

	for _, c := range clients {
		c.close()
		_ = c.Conn.Close()
	}
	metrics.ActiveRooms.Set(0)
	r.log.Info().Int("clients", len(clients)).Msg("room registry closed")
}
