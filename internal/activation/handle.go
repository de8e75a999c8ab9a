package activation

import (
	"reflect"

	"github.com/danpasecinic/tether/internal/weakref"
)

// CreatorHandle points back at the instance whose activation is building a
// dependency. It never keeps that instance alive.
type CreatorHandle struct {
	ref weakref.Ref
}

func NewHandle(creator any) (*CreatorHandle, error) {
	ref, err := weakref.Make(creator)
	if err != nil {
		return nil, err
	}
	return &CreatorHandle{ref: ref}, nil
}

// Resolve returns the creator, or false once it has been collected.
func (h *CreatorHandle) Resolve() (any, bool) {
	if h == nil {
		return nil, false
	}
	return h.ref.Value()
}

func (h *CreatorHandle) Alive() bool {
	return h != nil && h.ref.Alive()
}

// Type is the creator's dynamic type, available after collection.
func (h *CreatorHandle) Type() reflect.Type {
	if h == nil {
		return nil
	}
	return h.ref.Type()
}

func (h *CreatorHandle) String() string {
	if h == nil {
		return "<nil>"
	}
	return h.ref.String()
}
