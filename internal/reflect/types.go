package reflect

import (
	"reflect"
	"strconv"
	"sync"
)

var typeKeyCache sync.Map

func TypeKey[T any]() string {
	return TypeKeyFromType(typeOf[T]())
}

func TypeKeyFromType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if cached, ok := typeKeyCache.Load(t); ok {
		return cached.(string)
	}

	key := buildTypeKey(t)
	typeKeyCache.Store(t, key)
	return key
}

func buildTypeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Ptr:
		return "*" + buildTypeKey(t.Elem())
	case reflect.Slice:
		return "[]" + buildTypeKey(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + buildTypeKey(t.Elem())
	case reflect.Map:
		return "map[" + buildTypeKey(t.Key()) + "]" + buildTypeKey(t.Elem())
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + buildTypeKey(t.Elem())
		case reflect.SendDir:
			return "chan<- " + buildTypeKey(t.Elem())
		default:
			return "chan " + buildTypeKey(t.Elem())
		}
	case reflect.Func:
		return t.String()
	default:
		if t.PkgPath() != "" {
			return t.PkgPath() + "." + t.Name()
		}
		if t.Name() == "" {
			return t.String()
		}
		return t.Name()
	}
}

func TypeKeyFromValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	return TypeKeyFromType(reflect.TypeOf(v))
}

func TypeKeyNamed[T any](name string) string {
	return NamedKey(TypeKey[T](), name)
}

func TypeKeyNamedFromValue(v any, name string) string {
	return NamedKey(TypeKeyFromValue(v), name)
}

func NamedKey(key, name string) string {
	if name == "" {
		return key
	}
	return key + "#" + name
}

func IsNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}

func TypeName[T any]() string {
	return typeOf[T]().String()
}

// TypeOf returns the static type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return typeOf[T]()
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func IsInterface[T any]() bool {
	return typeOf[T]().Kind() == reflect.Interface
}

func Implements[T any](v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Implements(typeOf[T]())
}

// Supertypes returns t followed by every type reachable through embedded
// fields, in breadth-first order. An embedded struct B of a pointer type *S
// contributes both *B and B, since a *S instance carries an addressable B.
func Supertypes(t reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}

	seen := map[reflect.Type]bool{t: true}
	out := []reflect.Type{t}
	queue := []reflect.Type{t}

	add := func(st reflect.Type) {
		if seen[st] {
			return
		}
		seen[st] = true
		out = append(out, st)
		queue = append(queue, st)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		addressable := cur.Kind() == reflect.Ptr
		st := cur
		if addressable {
			st = cur.Elem()
		}
		if st.Kind() != reflect.Struct {
			continue
		}

		for i := range st.NumField() {
			f := st.Field(i)
			if !f.Anonymous {
				continue
			}

			switch {
			case f.Type.Kind() == reflect.Ptr:
				add(f.Type)
			case f.Type.Kind() == reflect.Struct && addressable:
				add(reflect.PointerTo(f.Type))
				add(f.Type)
			default:
				add(f.Type)
			}
		}
	}

	return out
}
