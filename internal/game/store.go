package game

import (
	"fmt"
	"sync"
	"time"
)

// ActionType tags the narrow operations the dispatcher may apply to a player.
type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionJump   ActionType = "jump"
	ActionReload ActionType = "reload"
	ActionHeal   ActionType = "heal"
	ActionPing   ActionType = "ping"
)

// Action is a validated, decoded instruction for HandleAction. Position and
// Rotation are pointers so "not provided" and "zero value" remain
// distinguishable; Amount and NewHealth are plain values.
type Action struct {
	Type      ActionType
	Position  *Vec3
	Rotation  *Vec3
	Amount    int
	NewHealth int
}

// StateStore is the in-memory authoritative world, guarded by a single
// readers/writer lock. No operation here may block on I/O
// or sleep while holding the lock.
type StateStore struct {
	mu         sync.RWMutex
	state      *MatchState
	maxPlayers int
	lastTick   time.Time
}

// NewStateStore constructs a fresh match with the given spawn table and player cap.
func NewStateStore(matchID string, spawns SpawnPointTable, maxPlayers int) *StateStore {
	if len(spawns) == 0 {
		spawns = DefaultSpawnPoints()
	}
	return &StateStore{
		state: &MatchState{
			Players: make(map[PlayerID]*Player),
			MatchID: matchID,
			spawns:  spawns,
		},
		maxPlayers: maxPlayers,
		lastTick:   time.Now(),
	}
}

func (s *StateStore) nextSpawnPoint() Vec3 {
	p := s.state.spawns[s.state.nextSpawn%len(s.state.spawns)]
	s.state.nextSpawn++
	return p
}

// AddPlayer inserts a new player at a rotating spawn point.
func (s *StateStore) AddPlayer(id PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Players[id]; exists {
		return ErrDuplicate
	}
	if len(s.state.Players) >= s.maxPlayers {
		return ErrFull
	}

	s.state.Players[id] = &Player{
		ID:          id,
		DisplayName: defaultDisplayName(id),
		Position:    s.nextSpawnPoint(),
		Health:      MaxHealth,
		IsAlive:     true,
	}
	s.state.order = append(s.state.order, id)
	return nil
}

// RemovePlayer deletes the player; not idempotent.
func (s *StateStore) RemovePlayer(id PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Players[id]; !exists {
		return ErrNotFound
	}
	delete(s.state.Players, id)
	for i, pid := range s.state.order {
		if pid == id {
			s.state.order = append(s.state.order[:i], s.state.order[i+1:]...)
			break
		}
	}
	return nil
}

// GetSnapshot returns a consistent, caller-immutable view of the match.
func (s *StateStore) GetSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make(map[PlayerID]Player, len(s.state.Players))
	for id, p := range s.state.Players {
		players[id] = *p
	}
	return Snapshot{
		Players:  players,
		GameTime: s.state.GameTime,
		IsActive: s.state.IsActive,
		MatchID:  s.state.MatchID,
	}
}

// UpdatePlayerName validates and sets a player's display name.
func (s *StateStore) UpdatePlayerName(id PlayerID, name string) error {
	if !validDisplayName(name) {
		return ErrBadAction
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.state.Players[id]
	if !exists {
		return ErrNotFound
	}
	p.DisplayName = name
	return nil
}

func validDisplayName(name string) bool {
	if len(name) == 0 || len([]rune(name)) > MaxDisplayNameLen {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// StartMatch requires at least two players and resets gameTime.
func (s *StateStore) StartMatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.state.Players) < 2 {
		return ErrTooFewPlayers
	}
	s.state.IsActive = true
	s.state.GameTime = 0
	return nil
}

// EndMatch marks the match inactive.
func (s *StateStore) EndMatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsActive = false
}

// Tick advances gameTime by the real elapsed interval since the previous
// tick and returns the new gameTime.
func (s *StateStore) Tick() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	delta := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	s.state.GameTime += delta
	return s.state.GameTime
}

// HandleAction applies one validated action to the named player.
// jump is treated identically to move: both are positional updates.
func (s *StateStore) HandleAction(id PlayerID, a Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.state.Players[id]
	if !exists {
		return ErrNotFound
	}

	switch a.Type {
	case ActionMove, ActionJump:
		if !p.IsAlive {
			return ErrNotAlive
		}
		if a.Position != nil {
			if !a.Position.Finite() {
				return ErrBadAction
			}
			p.Position = *a.Position
		}
		if a.Rotation != nil {
			if !a.Rotation.Finite() {
				return ErrBadAction
			}
			p.Rotation = *a.Rotation
		}
		return nil

	case ActionReload:
		if !p.IsAlive {
			return ErrNotAlive
		}
		return nil

	case ActionHeal:
		if !p.IsAlive {
			return ErrNotAlive
		}
		if a.Amount < 0 {
			return ErrBadAction
		}
		if a.NewHealth > p.Health+a.Amount {
			return ErrBadAction
		}
		newHealth := a.NewHealth
		if newHealth < 0 {
			newHealth = 0
		}
		if newHealth > MaxHealth {
			newHealth = MaxHealth
		}
		p.Health = newHealth
		if p.Health == 0 {
			p.IsAlive = false
			p.Deaths++
			s.scheduleRespawn(id)
		}
		return nil

	case ActionPing:
		return nil

	default:
		return ErrBadAction
	}
}

// scheduleRespawn spawns a short-lived task that sleeps outside the lock and
// then, if the player still exists, restores them to full health at a fresh
// spawn point. The closure captures only the PlayerID, never a pointer into
// state.
func (s *StateStore) scheduleRespawn(id PlayerID) {
	go func() {
		time.Sleep(RespawnDelay)

		s.mu.Lock()
		defer s.mu.Unlock()

		p, exists := s.state.Players[id]
		if !exists {
			return
		}
		p.Health = MaxHealth
		p.IsAlive = true
		p.Position = s.nextSpawnPoint()
	}()
}

// Summary is a lightweight read used for the tick loop's periodic status
// log; computed under the read lock, logged after release.
type Summary struct {
	ActivePlayers int
	TotalPlayers  int
	LeaderName    string
	LeaderKills   int
}

// Summarize reports player counts and the current kill leader.
func (s *StateStore) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	sum.TotalPlayers = len(s.state.Players)
	for _, p := range s.state.Players {
		if p.IsAlive {
			sum.ActivePlayers++
		}
		if p.Kills > sum.LeaderKills {
			sum.LeaderKills = p.Kills
			sum.LeaderName = p.DisplayName
		}
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("active=%d total=%d leader=%q(%d kills)",
		s.ActivePlayers, s.TotalPlayers, s.LeaderName, s.LeaderKills)
}

// CloseMatchCandidates reports the top two live players by kills, for the
// "close match" achievement check.
func (s *StateStore) CloseMatchCandidates() (firstKills, secondKills int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first, second := -1, -1
	for _, p := range s.state.Players {
		if !p.IsAlive {
			continue
		}
		switch {
		case p.Kills > first:
			second = first
			first = p.Kills
		case p.Kills > second:
			second = p.Kills
		}
	}
	if first < 0 || second < 0 {
		return 0, 0, false
	}
	return first, second, true
}

// PlayersWithMilestoneKills returns the display names of live players whose
// kill count is a nonzero multiple of 5.
func (s *StateStore) PlayersWithMilestoneKills() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for _, p := range s.state.Players {
		if p.IsAlive && p.Kills > 0 && p.Kills%5 == 0 {
			names = append(names, p.DisplayName)
		}
	}
	return names
}
