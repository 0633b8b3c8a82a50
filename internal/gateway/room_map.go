package gateway

import "sync"

// RoomMap tracks which connections are in which delivery rooms. It keeps
// both directions (room to connections and connection to rooms) so that
// tearing down a connection touches only the rooms it actually joined.
type RoomMap struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]*Client   // room name -> conn id -> client
	connRooms map[string]map[string]struct{}  // conn id -> room names
	conns     map[string]*Client              // conn id -> client
}

// NewRoomMap creates a new RoomMap
func NewRoomMap() *RoomMap {
	return &RoomMap{
		rooms:     make(map[string]map[string]*Client),
		connRooms: make(map[string]map[string]struct{}),
		conns:     make(map[string]*Client),
	}
}

// Add registers a connection with the map
func (m *RoomMap) Add(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conns[client.ConnId] = client
	if _, ok := m.connRooms[client.ConnId]; !ok {
		m.connRooms[client.ConnId] = make(map[string]struct{})
	}
}

// Join puts a connection into a room. Unknown connections are ignored.
func (m *RoomMap) Join(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[client.ConnId]; !ok {
		return
	}

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		m.rooms[room] = members
	}
	members[client.ConnId] = client
	m.connRooms[client.ConnId][room] = struct{}{}
}

// Leave removes a connection from a room. Empty rooms are deleted.
func (m *RoomMap) Leave(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaveLocked(room, client.ConnId)
}

func (m *RoomMap) leaveLocked(room, connId string) {
	if members, ok := m.rooms[room]; ok {
		delete(members, connId)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	if rooms, ok := m.connRooms[connId]; ok {
		delete(rooms, room)
	}
}

// Remove unregisters a connection, leaving every room it joined. Returns
// false when the connection was never registered (or already removed),
// which callers use to guarantee exactly-once disconnect cleanup.
func (m *RoomMap) Remove(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[client.ConnId]; !ok {
		return false
	}

	for room := range m.connRooms[client.ConnId] {
		m.leaveLocked(room, client.ConnId)
	}
	delete(m.connRooms, client.ConnId)
	delete(m.conns, client.ConnId)
	return true
}

// Members returns a copy of the connections currently in a room
func (m *RoomMap) Members(room string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.rooms[room]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(members))
	for _, c := range members {
		clients = append(clients, c)
	}
	return clients
}

// AllClients returns a copy of every registered connection
func (m *RoomMap) AllClients() []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]*Client, 0, len(m.conns))
	for _, c := range m.conns {
		clients = append(clients, c)
	}
	return clients
}

// RoomsOf returns the rooms a connection has joined
func (m *RoomMap) RoomsOf(connId string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]string, 0, len(m.connRooms[connId]))
	for room := range m.connRooms[connId] {
		rooms = append(rooms, room)
	}
	return rooms
}

// ConnCount returns the number of registered connections
func (m *RoomMap) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
