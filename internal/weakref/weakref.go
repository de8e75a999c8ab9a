// Package weakref observes pointers without keeping them alive.
//
// A Ref is comparable: two refs made from the same pointer are equal, and that
// stays true after the object is collected, so a Ref works as a map key for
// reference identity. Only non-nil pointers have an identity, and their
// element type must be at least tinySize bytes or contain a pointer. Smaller
// pointer-free objects share an allocation block with their neighbours and
// may never be reported as collected.
package weakref

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"unsafe"
	"weak"
)

var ErrNoIdentity = errors.New("value has no reference identity")

// tinySize is the runtime's tiny allocator block size. Pointer-free objects
// below it are packed together and freed as one.
const tinySize = 16

type Ref struct {
	ptr weak.Pointer[byte]
	typ reflect.Type
}

func Make(v any) (Ref, error) {
	p, t, err := pointerOf(v)
	if err != nil {
		return Ref{}, err
	}
	return Ref{ptr: weak.Make((*byte)(p)), typ: t}, nil
}

// Value returns the referenced object as the pointer type it was made from.
func (r Ref) Value() (any, bool) {
	if r.typ == nil {
		return nil, false
	}
	p := r.ptr.Value()
	if p == nil {
		return nil, false
	}
	return reflect.NewAt(r.typ.Elem(), unsafe.Pointer(p)).Interface(), true
}

func (r Ref) Alive() bool {
	return r.typ != nil && r.ptr.Value() != nil
}

func (r Ref) Type() reflect.Type {
	return r.typ
}

func (r Ref) IsZero() bool {
	return r.typ == nil
}

func (r Ref) String() string {
	if r.typ == nil {
		return "<nil>"
	}
	if r.Alive() {
		return r.typ.String()
	}
	return r.typ.String() + " (collected)"
}

// OnCollect arranges for notify to run some time after v becomes unreachable.
// The runtime gives no timing guarantee and may never run it before exit.
// notify must not reference v.
func OnCollect(v any, notify func()) error {
	p, _, err := pointerOf(v)
	if err != nil {
		return err
	}
	runtime.AddCleanup((*byte)(p), func(fn func()) { fn() }, notify)
	return nil
}

func pointerOf(v any) (unsafe.Pointer, reflect.Type, error) {
	if v == nil {
		return nil, nil, fmt.Errorf("%w: nil", ErrNoIdentity)
	}

	rv := reflect.ValueOf(v)
	t := rv.Type()

	if t.Kind() != reflect.Pointer {
		return nil, nil, fmt.Errorf("%w: %s is not a pointer", ErrNoIdentity, t)
	}
	if rv.IsNil() {
		return nil, nil, fmt.Errorf("%w: nil %s", ErrNoIdentity, t)
	}
	if t.Elem().Size() == 0 {
		return nil, nil, fmt.Errorf("%w: %s points to a zero-size type", ErrNoIdentity, t)
	}
	if t.Elem().Size() < tinySize && !hasPointers(t.Elem()) {
		return nil, nil, fmt.Errorf(
			"%w: %s points to a pointer-free type smaller than %d bytes", ErrNoIdentity, t, tinySize,
		)
	}

	return rv.UnsafePointer(), t, nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func,
		reflect.Slice, reflect.String, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
