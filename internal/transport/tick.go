package transport

import (
	"log"
	"time"

	"github.com/lab1702/arena-server/internal/game"
)

// tickLoop is the Fixed-rate driver. It never blocks on I/O or
// sleeps while the StateStore lock is held; logging happens after release.
func (s *Server) tickLoop() {
	ticker := time.NewTicker(game.TickInterval)
	defer ticker.Stop()

	var lastLoggedBoundary float64

	for {
		select {
		case <-ticker.C:
			gameTime := s.store.Tick()

			if boundary := float64(int(gameTime/game.StatusLogInterval.Seconds())) * game.StatusLogInterval.Seconds(); boundary > lastLoggedBoundary {
				lastLoggedBoundary = boundary
				summary := s.store.Summarize()
				log.Printf("status: %s", summary)
			}

			s.checkAchievements()

		case <-s.done:
			return
		}
	}
}

// checkAchievements only logs; it has no effect on match state.
func (s *Server) checkAchievements() {
	for _, name := range s.store.PlayersWithMilestoneKills() {
		log.Printf("achievement: %s reached a kill milestone", name)
	}

	if first, second, ok := s.store.CloseMatchCandidates(); ok {
		if first >= 6 && first-second <= 2 {
			log.Printf("achievement: close match in progress (%d vs %d kills)", first, second)
		}
	}
}

// broadcastLoop sends the latest snapshot to every live session at the
// broadcast rate. The snapshot sent to all sessions in one broadcast is
// derived from a single read under one lock acquisition.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(game.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snapshot := s.store.GetSnapshot()
			msg := outboundEnvelope{Type: TypeGameState, Payload: snapshot}

			s.mu.RLock()
			for _, c := range s.clients {
				c.send.enqueue(msg, false)
			}
			s.mu.RUnlock()

		case <-s.done:
			return
		}
	}
}
