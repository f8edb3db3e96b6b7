package coordstore

import (
	"context"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

var (
	// ErrNodeExists is returned by Create when the node already exists.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeAbsent is returned by operations on a node that does not exist.
	ErrNodeAbsent = errors.New("node not found")
	// ErrVersionConflict is returned by a conditional operation when the node version does not match.
	ErrVersionConflict = errors.New("node version mismatch")
)

// IsTransient reports whether the error is a connection-level failure
// that can be retried with the same arguments.
// Protocol errors and context cancellation are not transient.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, rpctypes.ErrGRPCTimeout) || errors.Is(err, rpctypes.ErrTimeout):
		return true
	case errors.Is(err, rpctypes.ErrGRPCTimeoutDueToLeaderFail) || errors.Is(err, rpctypes.ErrTimeoutDueToLeaderFail):
		return true
	case errors.Is(err, rpctypes.ErrGRPCTimeoutDueToConnectionLost) || errors.Is(err, rpctypes.ErrTimeoutDueToConnectionLost):
		return true
	case errors.Is(err, rpctypes.ErrGRPCLeaderChanged) || errors.Is(err, rpctypes.ErrLeaderChanged):
		return true
	case status.Code(err) == codes.Unavailable:
		return true
	default:
		return false
	}
}
