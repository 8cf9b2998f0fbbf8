package game

// HandleShot resolves one shot from shooterID against the set of live
// players. Exactly one of target/direction should be non-nil;
// the caller (the dispatcher) is responsible for that validation. If both
// are nil it returns ErrBadAction; if both are set, target is used. A
// zero-length ray after derivation simply means "no hit".
//
// The perpendicular-distance-with-linear-tolerance model is cheap, has no
// obstacle-occlusion dependency, and is intentionally forgiving: it accepts
// false positives at long range as a gameplay tradeoff in favor of not
// requiring an authoritative world-geometry model on the server.
func (s *StateStore) HandleShot(shooterID PlayerID, target, direction *Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shooter, exists := s.state.Players[shooterID]
	if !exists {
		return ErrNotFound
	}
	if !shooter.IsAlive {
		return ErrNotAlive
	}

	origin := shooter.Position
	var raw Vec3
	switch {
	case target != nil:
		raw = target.Sub(origin)
	case direction != nil:
		raw = *direction
	default:
		return ErrBadAction
	}

	d, ok := raw.Normalized()
	if !ok {
		return nil
	}

	var (
		bestID  PlayerID
		bestHit bool
		bestT   float64
	)

	for _, pid := range s.state.order {
		if pid == shooterID {
			continue
		}
		p := s.state.Players[pid]
		if p == nil || !p.IsAlive {
			continue
		}

		v := p.Position.Sub(origin)
		t := v.Dot(d)
		if t <= 0 {
			continue
		}

		closest := origin.Add(d.Scale(t))
		r := p.Position.Sub(closest).Length()
		threshold := 2.5 + 0.15*t

		if r < threshold && (!bestHit || t < bestT) {
			bestHit = true
			bestT = t
			bestID = pid
		}
	}

	if !bestHit {
		return nil
	}

	victim := s.state.Players[bestID]
	victim.Health -= ShotDamage
	if victim.Health <= 0 {
		victim.Health = 0
		victim.IsAlive = false
		victim.Deaths++
		shooter.Kills++
		s.scheduleRespawn(bestID)
	}

	return nil
}
