package rclmesh

import (
	"errors"
	"fmt"

	"github.com/fastQM/rclmesh/rmw"
)

// Construction and operation errors. They are surfaced to the direct caller
// and never retried internally: a construction failure indicates a
// configuration problem the caller must fix, and retry policy for operations
// belongs to the application.
var (
	ErrMiddleware          = errors.New("rclmesh: middleware error")
	ErrInvalidArgument     = errors.New("rclmesh: invalid argument")
	ErrAllocationFailed    = errors.New("rclmesh: allocation failure")
	ErrAlreadyInitialized  = errors.New("rclmesh: already initialized")
	ErrNodeInvalid         = errors.New("rclmesh: node invalid")
	ErrInvalidNodeName     = errors.New("rclmesh: invalid node name")
	ErrInvalidNamespace    = errors.New("rclmesh: invalid namespace")
	ErrInvalidTopicName    = errors.New("rclmesh: invalid topic name")
	ErrPublisherInvalid    = errors.New("rclmesh: publisher invalid")
	ErrSubscriptionInvalid = errors.New("rclmesh: subscription invalid")
)

// errTakeFailed never escapes the package: an empty take is an ordinary
// outcome, reported as (nil, false, nil) rather than an error.
var errTakeFailed = errors.New("rclmesh: take failed")

var statusErrors = map[rmw.Status]error{
	rmw.StatusError:               ErrMiddleware,
	rmw.StatusInvalidArgument:     ErrInvalidArgument,
	rmw.StatusBadAlloc:            ErrAllocationFailed,
	rmw.StatusAlreadyInit:         ErrAlreadyInitialized,
	rmw.StatusNodeInvalid:         ErrNodeInvalid,
	rmw.StatusInvalidNodeName:     ErrInvalidNodeName,
	rmw.StatusInvalidNamespace:    ErrInvalidNamespace,
	rmw.StatusInvalidTopicName:    ErrInvalidTopicName,
	rmw.StatusPublisherInvalid:    ErrPublisherInvalid,
	rmw.StatusSubscriptionInvalid: ErrSubscriptionInvalid,
	rmw.StatusTakeFailed:          errTakeFailed,
}

// statusError maps a middleware status to the package error taxonomy.
func statusError(st rmw.Status) error {
	if st == rmw.StatusOK {
		return nil
	}
	if err, ok := statusErrors[st]; ok {
		return err
	}
	return fmt.Errorf("%w: status %d", ErrMiddleware, int(st))
}
