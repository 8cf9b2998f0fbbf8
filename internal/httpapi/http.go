// Package httpapi provides the HTTP sideband endpoints:
// a constant health check and a small JSON status summary.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/lab1702/arena-server/internal/game"
)

// Health responds 200 with a small constant body.
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusResponse struct {
	PlayersConnected int     `json:"playersConnected"`
	MatchActive      bool    `json:"matchActive"`
	MatchID          string  `json:"matchId"`
	GameTime         float64 `json:"gameTime"`
}

// Status returns a JSON summary of the current match.
func Status(store *game.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := store.GetSnapshot()
		resp := statusResponse{
			PlayersConnected: len(snap.Players),
			MatchActive:      snap.IsActive,
			MatchID:          snap.MatchID,
			GameTime:         snap.GameTime,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
