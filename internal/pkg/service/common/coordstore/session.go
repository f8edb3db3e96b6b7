package coordstore

import (
	"context"
	"sync"

	etcd "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"google.golang.org/grpc/connectivity"

	"github.com/etcdmq/etcdmq/internal/pkg/log"
)

// SessionState describes the liveness of a session from the point of view of its owner.
type SessionState int

const (
	// SessionConnected - the session lease is kept alive.
	SessionConnected SessionState = iota
	// SessionDisconnected - the connection is lost, the lease may still be alive,
	// the client reconnects transparently within the lease TTL.
	SessionDisconnected
	// SessionExpired - the lease is gone and all ephemeral nodes with it, terminal state.
	SessionExpired
)

func (v SessionState) String() string {
	switch v {
	case SessionConnected:
		return "connected"
	case SessionDisconnected:
		return "disconnected"
	case SessionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Session wraps a lease-backed etcd session.
// Ephemeral nodes are created with the session lease, the store removes them
// when the lease expires. The session does not re-create itself: expiry is
// terminal and is delivered to the OnStateChange callbacks, the owner decides
// whether to register again.
type Session struct {
	logger  log.Logger
	session *concurrency.Session

	lock      sync.Mutex
	lastState SessionState
	callbacks []func(state SessionState)
}

// NewSession creates a session with the given lease TTL.
// Goroutines watching the session end with the context or with the session itself.
func (s *Store) NewSession(ctx context.Context, wg *sync.WaitGroup, ttlSeconds int) (*Session, error) {
	logger := s.logger.WithComponent("session")

	session, err := concurrency.NewSession(s.client, concurrency.WithTTL(ttlSeconds))
	if err != nil {
		return nil, err
	}

	// Check the connection, wait for the first keep-alive
	if _, err := session.Client().KeepAliveOnce(ctx, session.Lease()); err != nil {
		_ = session.Close()
		return nil, err
	}

	v := &Session{logger: logger, session: session, lastState: SessionConnected}
	logger.Infof(ctx, `created session, lease %x, ttl %ds`, int64(session.Lease()), ttlSeconds)

	// Deliver the expiry
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-session.Done():
			logger.Warn(ctx, "session expired")
			v.dispatch(SessionExpired)
		}
	}()

	// Deliver connection loss and recovery
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn := s.client.ActiveConnection()
		for {
			state := conn.GetState()
			switch state {
			case connectivity.Ready:
				v.dispatch(SessionConnected)
			case connectivity.TransientFailure:
				v.dispatch(SessionDisconnected)
			case connectivity.Shutdown:
				return
			default:
				// Idle and Connecting are transitional, report nothing
			}
			if !conn.WaitForStateChange(ctx, state) {
				return // context is done
			}
			select {
			case <-v.session.Done():
				return
			default:
			}
		}
	}()

	return v, nil
}

// OnStateChange registers a callback, it receives every state transition.
// The callback must not block.
func (v *Session) OnStateChange(fn func(state SessionState)) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.callbacks = append(v.callbacks, fn)
}

// Lease returns the session lease for ephemeral node creation.
func (v *Session) Lease() etcd.LeaseID {
	return v.session.Lease()
}

// Done is closed when the session lease expires.
func (v *Session) Done() <-chan struct{} {
	return v.session.Done()
}

// IsExpired reports whether the session lease is gone.
func (v *Session) IsExpired() bool {
	select {
	case <-v.session.Done():
		return true
	default:
		return false
	}
}

// Close revokes the lease, all ephemeral nodes of the session are removed immediately.
func (v *Session) Close() error {
	return v.session.Close()
}

func (v *Session) dispatch(state SessionState) {
	v.lock.Lock()
	if state == v.lastState || v.lastState == SessionExpired {
		v.lock.Unlock()
		return
	}
	v.lastState = state
	callbacks := make([]func(SessionState), len(v.callbacks))
	copy(callbacks, v.callbacks)
	v.lock.Unlock()
	for _, fn := range callbacks {
		fn(state)
	}
}
