package world

// Event is a pending status flag. Each kind is a distinct bit so a set of
// pending events is reported as a single byte.
type Event uint8

const (
	EventCollision Event = 1 << iota
	EventFreeze
	EventRoster
	EventCommand
)

// AddEvent marks an event pending for one client.
func (r *Registry) AddEvent(id int, ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	r.events[id] |= ev
	return true
}

// AddEventToAll marks an event pending for every client.
func (r *Registry) AddEventToAll(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.clients {
		r.events[id] |= ev
	}
}

// CalculateStatus returns the pending events of a client as one byte and
// clears them, so each event is reported exactly once.
func (r *Registry) CalculateStatus(id int) (uint8, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return 0, false
	}
	status := r.events[id]
	delete(r.events, id)
	return uint8(status), true
}
