package server

import (
	"github.com/tomz197/tileworld/internal/viewport"
	"github.com/tomz197/tileworld/internal/world"
)

// notifyCollisions flags a collision for every client that sees at least one
// body that collided this tick.
func (s *Server) notifyCollisions(collided []int, visible map[int][]viewport.Visible) {
	if len(collided) == 0 {
		return
	}
	hit := make(map[int]struct{}, len(collided))
	for _, id := range collided {
		hit[id] = struct{}{}
	}
	for clientID, list := range visible {
		for _, v := range list {
			if _, ok := hit[v.BodyID]; ok {
				s.registry.AddEvent(clientID, world.EventCollision)
				break
			}
		}
	}
}
