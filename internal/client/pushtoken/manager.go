// Package pushtoken manages the device's push identity: local persistence,
// remote registration and automatic recovery from transient registration
// failures.
package pushtoken

import (
	"context"
	"errors"
	"time"

	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/client/connectivity"
	"questionbox/internal/client/store"
)

// maxRetryAttempts caps registration retries. A token the server keeps
// rejecting is likely revoked or invalid; retrying it forever is wasted work.
const maxRetryAttempts = 5

type identityStore interface {
	SaveIdentity(store.PushIdentity) error
	LoadIdentity() (store.PushIdentity, error)
	SaveRetry(store.RegistrationRetry) error
	LoadRetry() (store.RegistrationRetry, error)
	DeleteRetry() error
}

type registrar interface {
	RegisterToken(ctx context.Context, token, deviceType string) error
}

type connectivitySource interface {
	Subscribe() *connectivity.Subscription
}

// Stats summarizes the local token state for diagnostics.
type Stats struct {
	Stored           bool
	Registered       bool
	Age              time.Duration
	RetriesAttempted int
}

// Manager owns the push identity lifecycle for one installation.
type Manager struct {
	store  identityStore
	remote registrar
	net    connectivitySource
}

// NewManager creates a new push identity manager.
func NewManager(st identityStore, remote registrar, net connectivitySource) *Manager {
	return &Manager{store: st, remote: remote, net: net}
}

// SaveLocally overwrites the stored push identity with a fresh, unregistered
// one. There is at most one identity per installation.
func (m *Manager) SaveLocally(token, deviceType string) error {
	return m.store.SaveIdentity(store.PushIdentity{
		TokenValue:   token,
		DeviceType:   deviceType,
		CapturedAtMs: time.Now().UnixMilli(),
		Registered:   false,
	})
}

// LoadLocally returns the stored push identity, or store.ErrNotFound.
func (m *Manager) LoadLocally() (store.PushIdentity, error) {
	return m.store.LoadIdentity()
}

// RegisterWithServer attempts the remote registration.
//
// Failure is a normal, expected outcome communicated via the return value,
// never an error: the attempt is recorded in the single-slot retry record
// and will be re-tried on the next connectivity-restore window. On success
// the stored identity is marked registered and the retry record cleared.
func (m *Manager) RegisterWithServer(ctx context.Context, token, deviceType string) bool {
	if err := m.remote.RegisterToken(ctx, token, deviceType); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to register push token")
		m.recordFailure(token, deviceType)
		return false
	}

	ident, err := m.store.LoadIdentity()
	if err == nil && ident.TokenValue == token {
		ident.Registered = true
		if err := m.store.SaveIdentity(ident); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to mark push token registered")
		}
	}

	if err := m.store.DeleteRetry(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to clear retry record")
	}

	zlog.Logger.Info().Str("device_type", deviceType).Msg("push token registered with server")

	return true
}

// recordFailure creates or increments the single retry slot. A failure for
// a different token overwrites the slot: a new token invalidates any old
// retry.
func (m *Manager) recordFailure(token, deviceType string) {
	rec, err := m.store.LoadRetry()
	if err != nil || rec.TokenValue != token {
		rec = store.RegistrationRetry{TokenValue: token, DeviceType: deviceType}
	}

	rec.AttemptCount++
	rec.LastAttemptMs = time.Now().UnixMilli()

	if err := m.store.SaveRetry(rec); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to save retry record")
	}
}

// RetryFailedRegistration re-attempts a previously failed registration.
//
// With no retry record pending it trivially succeeds. Once the attempt
// count exceeds the ceiling the record is abandoned for good and no further
// call is made.
func (m *Manager) RetryFailedRegistration(ctx context.Context) bool {
	rec, err := m.store.LoadRetry()
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to load retry record")
		return false
	}

	if rec.AttemptCount > maxRetryAttempts {
		zlog.Logger.Warn().Int("attempts", rec.AttemptCount).Msg("abandoning push token registration after max attempts")
		if err := m.store.DeleteRetry(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to delete retry record")
		}
		return false
	}

	zlog.Logger.Info().Int("attempt", rec.AttemptCount+1).Msg("retrying push token registration")

	return m.RegisterWithServer(ctx, rec.TokenValue, rec.DeviceType)
}

// HandleTokenRefresh replaces the identity after a platform token reissue
// and immediately attempts registration for the new value. The old retry
// record, if any, is invalidated first.
func (m *Manager) HandleTokenRefresh(ctx context.Context, token, deviceType string) bool {
	if err := m.store.DeleteRetry(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to clear retry record")
	}

	if err := m.SaveLocally(token, deviceType); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to save refreshed push token")
		return false
	}

	return m.RegisterWithServer(ctx, token, deviceType)
}

// Stats reports the local token state.
func (m *Manager) Stats() Stats {
	var s Stats

	ident, err := m.store.LoadIdentity()
	if err == nil {
		s.Stored = true
		s.Registered = ident.Registered
		s.Age = time.Since(time.UnixMilli(ident.CapturedAtMs))
	}

	if rec, err := m.store.LoadRetry(); err == nil {
		s.RetriesAttempted = rec.AttemptCount
	}

	return s
}

// Run retries a failed registration once per became-online transition
// until ctx is cancelled. Transitions, not polling, bound the retry
// frequency to actual opportunity windows.
func (m *Manager) Run(ctx context.Context) {
	sub := m.net.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}

			if ev != connectivity.Online {
				continue
			}

			m.RetryFailedRegistration(ctx)
		}
	}
}
