package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/zonewarden/internal/domain"
	"github.com/pscheid92/zonewarden/internal/metrics"
)

// Manager orchestrates the session lifecycle: admission after a funds check,
// periodic reconciliation against absolute deadlines, disconnect bookkeeping,
// and restoration on reconnect. It is the only component that touches the
// ledger, the world host, the catalog, and the persistence gateway together.
type Manager struct {
	zones   domain.ZoneSource
	store   *Store
	persist domain.SnapshotStore
	ledger  domain.Ledger
	world   domain.World
	clock   clockwork.Clock

	// collapses concurrent admissions for the same participant
	admitGroup singleflight.Group
}

func NewManager(zones domain.ZoneSource, store *Store, persist domain.SnapshotStore, ledger domain.Ledger, world domain.World, clock clockwork.Clock) *Manager {
	return &Manager{
		zones:   zones,
		store:   store,
		persist: persist,
		ledger:  ledger,
		world:   world,
		clock:   clock,
	}
}

// LoadAndReconcile restores persisted sessions into the store, purging
// records that cannot be acted upon: unknown participant, unknown zone, or a
// deadline that was never validly computed. Returns the number purged.
// Intact sessions for offline participants are kept even when already
// expired; the reconnect path restores those.
func (m *Manager) LoadAndReconcile(ctx context.Context) (int, error) {
	loaded, err := m.persist.Load(ctx)
	if err != nil {
		slog.Error("Failed to load persisted sessions, starting with what could be read", "error", err)
	}

	valid := make(map[uuid.UUID]domain.Session, len(loaded))
	purged := 0
	for pid, sess := range loaded {
		if pid == uuid.Nil || sess.ParticipantID == uuid.Nil || sess.ExpiresAtMillis <= 0 {
			purged++
			continue
		}
		if _, ok := m.zones.Get(sess.ZoneID); !ok {
			slog.Warn("Purging session for unknown zone", "participant_id", pid, "zone_id", sess.ZoneID)
			purged++
			continue
		}
		valid[pid] = sess
	}

	m.store.Replace(valid)
	metrics.ActiveSessions.Set(float64(len(valid)))

	if purged > 0 {
		metrics.StartupPurgedSessions.Add(float64(purged))
		slog.Warn("Startup reconciliation purged invalid sessions", "purged", purged, "kept", len(valid))
		m.Checkpoint(ctx)
	} else {
		slog.Info("Sessions restored", "sessions", len(valid))
	}
	return purged, err
}

// Admit charges the zone's entry fee and relocates the participant into the
// zone. Failures before the debit leave no state behind. After a successful
// debit a session is always recorded, even if the relocation itself fails,
// so the return trip is never silently lost.
func (m *Manager) Admit(ctx context.Context, participantID uuid.UUID, zoneID int) error {
	_, err, _ := m.admitGroup.Do(participantID.String(), func() (any, error) {
		return nil, m.admit(ctx, participantID, zoneID)
	})
	return err
}

func (m *Manager) admit(ctx context.Context, pid uuid.UUID, zoneID int) error {
	if _, ok := m.store.Get(pid); ok {
		metrics.AdmissionsTotal.WithLabelValues("session_exists").Inc()
		return fmt.Errorf("%w: %s", domain.ErrSessionExists, pid)
	}

	zone, ok := m.zones.Get(zoneID)
	if !ok {
		metrics.AdmissionsTotal.WithLabelValues("zone_not_found").Inc()
		m.notify(ctx, pid, fmt.Sprintf("Zone %d not found.", zoneID))
		return fmt.Errorf("%w: %d", domain.ErrZoneNotFound, zoneID)
	}

	// The pre-payment read doubles as the online check and as the fallback
	// origin if the post-payment read fails.
	prePos, err := m.world.Position(ctx, pid)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("offline").Inc()
		return fmt.Errorf("%w: %s", domain.ErrParticipantOffline, pid)
	}
	preRegion, err := m.world.Region(ctx, pid)
	if err != nil {
		preRegion = domain.DefaultRegionID
	}

	account, err := m.ledger.GetAccount(ctx, pid)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("account_unavailable").Inc()
		m.notify(ctx, pid, "Could not reach your funds account.")
		return fmt.Errorf("%w: %w", domain.ErrAccountUnavailable, err)
	}
	if account == nil {
		metrics.AdmissionsTotal.WithLabelValues("account_unavailable").Inc()
		m.notify(ctx, pid, "Could not reach your funds account.")
		return fmt.Errorf("%w: %s", domain.ErrAccountUnavailable, pid)
	}

	if account.Balance < zone.Cost {
		metrics.AdmissionsTotal.WithLabelValues("insufficient_funds").Inc()
		m.notify(ctx, pid, fmt.Sprintf("Insufficient funds to enter the zone. Required: %.0f", zone.Cost))
		return fmt.Errorf("%w: need %.0f, have %.0f", domain.ErrInsufficientFunds, zone.Cost, account.Balance)
	}

	// The balance read and the debit are not atomic across the ledger
	// boundary; the debit is the authoritative gate.
	withdrawn, err := m.ledger.Withdraw(ctx, account, zone.Cost)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("payment_failed").Inc()
		m.notify(ctx, pid, "Could not withdraw the entry fee.")
		return fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}
	if !withdrawn {
		metrics.AdmissionsTotal.WithLabelValues("payment_failed").Inc()
		m.notify(ctx, pid, "Could not withdraw the entry fee.")
		return fmt.Errorf("%w: withdrawal rejected", domain.ErrPaymentFailed)
	}

	// Arbitrary time may have passed inside the ledger calls. Re-read the
	// position so the recorded origin is where the participant stood at the
	// moment payment succeeded, falling back to the pre-payment read.
	pos, region := prePos, preRegion
	if p, perr := m.world.Position(ctx, pid); perr == nil {
		pos = p
		if r, rerr := m.world.Region(ctx, pid); rerr == nil {
			region = r
		}
	}

	now := m.clock.Now()
	sess := domain.Session{
		ParticipantID:    pid,
		OriginalPosition: pos,
		OriginRegionID:   region,
		ZoneID:           zone.ID,
		ExpiresAtMillis:  now.Add(zone.Duration()).UnixMilli(),
	}

	// Session before relocation: if the teleport fails the debit is still
	// covered by a recorded return trip.
	m.store.Put(sess)
	metrics.ActiveSessions.Set(float64(m.store.Len()))
	m.Checkpoint(ctx)

	// The catalog may have been reloaded while the ledger calls were in
	// flight. If the zone vanished, do not teleport into it; the session
	// stays recorded so the participant is not left owing a paid entry.
	if _, ok := m.zones.Get(zone.ID); !ok {
		metrics.AdmissionsTotal.WithLabelValues("relocation_failed").Inc()
		slog.Error("Zone removed during admission, session retained",
			"participant_id", pid, "zone_id", zone.ID)
		m.notify(ctx, pid, "The zone is no longer available.")
		return fmt.Errorf("%w: zone %d removed during admission", domain.ErrRelocationFailed, zone.ID)
	}

	if err := m.world.Teleport(ctx, pid, zone.RegionID, zone.Destination); err != nil {
		metrics.AdmissionsTotal.WithLabelValues("relocation_failed").Inc()
		slog.Error("Admission relocation failed, session retained",
			"participant_id", pid, "zone_id", zone.ID, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrRelocationFailed, err)
	}

	metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
	m.notify(ctx, pid, "You have entered the zone.")
	slog.Info("Participant admitted",
		"participant_id", pid, "zone_id", zone.ID,
		"expires_at_millis", sess.ExpiresAtMillis, "cost", zone.Cost)
	return nil
}

// Disconnect stamps the logout time on the participant's session. The write
// is checkpointed immediately: the process may not survive until the next
// periodic save.
func (m *Manager) Disconnect(ctx context.Context, pid uuid.UUID) {
	now := m.clock.Now().UnixMilli()
	if !m.store.Update(pid, func(s *domain.Session) { s.LogoutAtMillis = now }) {
		return
	}
	slog.Info("Participant disconnected with live session", "participant_id", pid)
	m.Checkpoint(ctx)
}

// Reconnect restores an expired session immediately, or recomputes the
// deadline from the time that was left at logout. The recomputation runs at
// most once per disconnect: it is guarded by the logout stamp, so calling
// Reconnect twice in a row deducts nothing twice.
func (m *Manager) Reconnect(ctx context.Context, pid uuid.UUID) error {
	sess, ok := m.store.Get(pid)
	if !ok {
		return nil
	}

	now := m.clock.Now()
	nowMillis := now.UnixMilli()

	if sess.Expired(now) {
		m.tryRestore(ctx, pid, "reconnect", func(s domain.Session) bool {
			return s.ExpiresAtMillis <= nowMillis
		})
		return nil
	}

	if sess.LogoutAtMillis == 0 {
		// Already recomputed for this connection; only re-report.
		m.notifyRemaining(ctx, pid, sess.Remaining(now))
		return nil
	}

	if sess.RemainingAtLogout() <= 0 {
		m.tryRestore(ctx, pid, "reconnect", func(s domain.Session) bool {
			return s.LogoutAtMillis != 0 && s.RemainingAtLogout() <= 0
		})
		return nil
	}

	m.store.Update(pid, func(s *domain.Session) {
		if s.LogoutAtMillis == 0 {
			return
		}
		remaining := s.ExpiresAtMillis - s.LogoutAtMillis
		s.ExpiresAtMillis = nowMillis + remaining
		s.LogoutAtMillis = 0
	})
	m.Checkpoint(ctx)

	if updated, ok := m.store.Get(pid); ok {
		m.notifyRemaining(ctx, pid, updated.Remaining(now))
		slog.Info("Session deadline recomputed on reconnect",
			"participant_id", pid, "expires_at_millis", updated.ExpiresAtMillis)
	}
	return nil
}

// Sweep is the periodic reconciliation pass. Sessions for zones no longer in
// the catalog are dropped; expired sessions of online participants are
// restored if the participant is still inside the zone bounds, or simply
// cleared if they already left. Offline participants are left for the
// reconnect path.
func (m *Manager) Sweep(ctx context.Context) {
	start := m.clock.Now()
	defer func() {
		metrics.SweepDurationSeconds.Observe(m.clock.Since(start).Seconds())
	}()

	now := m.clock.Now()
	nowMillis := now.UnixMilli()
	expired := func(s domain.Session) bool { return s.ExpiresAtMillis <= nowMillis }

	for pid, sess := range m.store.Snapshot() {
		zone, ok := m.zones.Get(sess.ZoneID)
		if !ok {
			staleID := sess.ZoneID
			if _, taken := m.store.TakeIf(pid, func(s domain.Session) bool { return s.ZoneID == staleID }); taken {
				slog.Warn("Dropped session for zone missing from catalog", "participant_id", pid, "zone_id", staleID)
				metrics.EvictionsTotal.WithLabelValues("stale_zone").Inc()
				m.Checkpoint(ctx)
			}
			continue
		}

		if !sess.Expired(now) {
			continue
		}

		if !m.world.IsOnline(ctx, pid) {
			continue
		}

		pos, err := m.world.Position(ctx, pid)
		if err != nil {
			slog.Warn("Sweep could not read position", "participant_id", pid, "error", err)
			continue
		}

		if zone.Bounds.Contains(pos) {
			m.tryRestore(ctx, pid, "expired_inside", expired)
			continue
		}

		// Already outside the zone: no forced relocation, just clear the debt.
		if _, taken := m.store.TakeIf(pid, expired); taken {
			metrics.EvictionsTotal.WithLabelValues("expired_outside").Inc()
			m.notify(ctx, pid, "Your time in the zone is over.")
			m.Checkpoint(ctx)
		}
	}

	metrics.ActiveSessions.Set(float64(m.store.Len()))
}

// Sessions returns a copy of the live session registry.
func (m *Manager) Sessions() map[uuid.UUID]domain.Session {
	return m.store.Snapshot()
}

// Checkpoint persists the current session snapshot. Persistence failures are
// logged and absorbed; the process degrades to in-memory state for the cycle.
func (m *Manager) Checkpoint(ctx context.Context) {
	if err := m.persist.Save(ctx, m.store.Snapshot()); err != nil {
		metrics.PersistenceSavesTotal.WithLabelValues("error").Inc()
		slog.Error("Session snapshot save failed, continuing in memory", "error", err)
		return
	}
	metrics.PersistenceSavesTotal.WithLabelValues("ok").Inc()
}

// tryRestore removes the session if pred still holds and performs the return
// trip. The atomic take is what keeps a racing sweep and reconnect from both
// restoring the same participant.
func (m *Manager) tryRestore(ctx context.Context, pid uuid.UUID, reason string, pred func(domain.Session) bool) {
	sess, ok := m.store.TakeIf(pid, pred)
	if !ok {
		return
	}
	m.restore(ctx, sess, reason)
}

// restore relocates the participant back to their recorded origin. The
// session has already been removed by the caller and stays removed even when
// the relocation fails: forward progress over repeated restoration attempts.
func (m *Manager) restore(ctx context.Context, sess domain.Session, reason string) {
	pid := sess.ParticipantID

	regionID, err := m.world.ResolveRegion(ctx, sess.OriginRegionID)
	if err != nil {
		slog.Warn("Origin region unresolvable, using default",
			"participant_id", pid, "region_id", sess.OriginRegionID, "error", err)
		regionID = domain.DefaultRegionID
	}

	if err := m.world.Teleport(ctx, pid, regionID, sess.OriginalPosition); err != nil {
		slog.Error("Failed to return participant", "participant_id", pid, "error", err)
		m.notify(ctx, pid, "Could not return you to your original position.")
	} else {
		m.notify(ctx, pid, "Zone time is over. You have been returned to your original position.")
		slog.Info("Participant restored", "participant_id", pid, "reason", reason)
	}

	metrics.EvictionsTotal.WithLabelValues(reason).Inc()
	metrics.ActiveSessions.Set(float64(m.store.Len()))
	m.Checkpoint(ctx)
}

func (m *Manager) notifyRemaining(ctx context.Context, pid uuid.UUID, remaining time.Duration) {
	secs := int64(remaining / time.Second)
	m.notify(ctx, pid, fmt.Sprintf("You are still in the zone. Time remaining: %d seconds.", secs))
}

func (m *Manager) notify(ctx context.Context, pid uuid.UUID, msg string) {
	if err := m.world.Notify(ctx, pid, msg); err != nil {
		slog.Debug("Participant notification failed", "participant_id", pid, "error", err)
	}
}
