package msg

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrReleased is returned when a Native is used after Release.
	ErrReleased = errors.New("msg: native representation already released")
)

// Native is a message in its middleware wire representation. It is owned by
// the type support that produced it and must be released exactly once.
type Native struct {
	// Data is the encoded payload. Middleware take operations overwrite it
	// in place.
	Data []byte

	release  func(*Native)
	released bool
}

// NewNative returns a standalone native representation holding data. If
// onRelease is non-nil it runs on the first Release; custom TypeSupport
// implementations use it to tie representations to their own allocator.
func NewNative(data []byte, onRelease func()) *Native {
	n := &Native{Data: data}
	if onRelease != nil {
		n.release = func(*Native) { onRelease() }
	}
	return n
}

// Release returns the representation to its type support. Releasing twice is
// a no-op so that error paths can release unconditionally.
func (n *Native) Release() {
	if n == nil || n.released {
		return
	}
	n.released = true
	if n.release != nil {
		n.release(n)
	}
}

// TypeSupport converts between typed messages and native representations.
// Implementations must be safe for concurrent use.
type TypeSupport interface {
	// TypeName is the wire-visible name of the message type. Publishers and
	// subscriptions on a topic must agree on it.
	TypeName() string
	// New returns a freshly allocated zero message, typed as the support's
	// concrete message type. This is the type-erased buffer allocation used
	// by executors.
	New() any
	// ToNative encodes m into a native representation. The caller owns the
	// result and must release it.
	ToNative(m any) (*Native, error)
	// FromNative decodes a native representation into m, which must be a
	// value returned by New.
	FromNative(n *Native, m any) error
	// NewNative returns an empty native representation for a middleware take
	// to fill. The caller owns it and must release it.
	NewNative() *Native
}

type cborSupport[T any] struct {
	name string
	pool sync.Pool
}

// CBOR returns a TypeSupport for *T encoded with canonical CBOR. The type
// name is derived from T's package path and name.
func CBOR[T any]() TypeSupport {
	t := reflect.TypeOf((*T)(nil)).Elem()
	name := t.String()
	if path := t.PkgPath(); path != "" {
		name = path + "." + t.Name()
	}
	s := &cborSupport[T]{name: name}
	s.pool.New = func() any { return &Native{} }
	return s
}

func (s *cborSupport[T]) TypeName() string { return s.name }

func (s *cborSupport[T]) New() any { return new(T) }

func (s *cborSupport[T]) ToNative(m any) (*Native, error) {
	typed, ok := m.(*T)
	if !ok {
		return nil, fmt.Errorf("msg: %s cannot encode %T", s.name, m)
	}
	data, err := encMode.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("msg: encode %s: %w", s.name, err)
	}
	n := s.NewNative()
	n.Data = append(n.Data[:0], data...)
	return n, nil
}

func (s *cborSupport[T]) FromNative(n *Native, m any) error {
	if n == nil || n.released {
		return ErrReleased
	}
	typed, ok := m.(*T)
	if !ok {
		return fmt.Errorf("msg: %s cannot decode into %T", s.name, m)
	}
	if err := cbor.Unmarshal(n.Data, typed); err != nil {
		return fmt.Errorf("msg: decode %s: %w", s.name, err)
	}
	return nil
}

func (s *cborSupport[T]) NewNative() *Native {
	n := s.pool.Get().(*Native)
	n.Data = n.Data[:0]
	n.released = false
	n.release = func(n *Native) { s.pool.Put(n) }
	return n
}

// encMode is the deterministic encoder shared by all CBOR type supports.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}
