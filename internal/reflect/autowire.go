package reflect

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type ParamInfo struct {
	Index   int
	Type    reflect.Type
	TypeKey string
}

// FuncParams inspects a constructor. It must return T or (T, error).
func FuncParams(fn any) ([]ParamInfo, reflect.Type, error) {
	if fn == nil {
		return nil, nil, errors.New("constructor is nil")
	}

	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("constructor must be a function, got %s", t)
	}
	if t.IsVariadic() {
		return nil, nil, fmt.Errorf("variadic constructors are not supported: %s", t)
	}

	switch t.NumOut() {
	case 0:
		return nil, nil, nil
	case 1:
	case 2:
		if !t.Out(1).Implements(errorType) {
			return nil, nil, fmt.Errorf("second return value of %s must be an error", t)
		}
	default:
		return nil, nil, fmt.Errorf("constructor %s returns too many values", t)
	}

	params := make([]ParamInfo, t.NumIn())
	for i := range t.NumIn() {
		in := t.In(i)
		params[i] = ParamInfo{
			Index:   i,
			Type:    in,
			TypeKey: TypeKeyFromType(in),
		}
	}

	return params, t.Out(0), nil
}

type FieldInfo struct {
	Name     string
	Index    int
	Type     reflect.Type
	TypeKey  string
	Named    string
	Optional bool
	Creator  bool
}

// Key is the container key the field resolves from.
func (f FieldInfo) Key() string {
	return NamedKey(f.TypeKey, f.Named)
}

// StructFields lists the fields of T (or *T) carrying tagKey. The tag value is
// "name,opt1,opt2" where the options are "optional" and "creator".
func StructFields[T any](tagKey string) ([]FieldInfo, error) {
	return StructFieldsOf(typeOf[T](), tagKey)
}

func StructFieldsOf(t reflect.Type, tagKey string) ([]FieldInfo, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct type, got %s", t)
	}

	var fields []FieldInfo
	for i := range t.NumField() {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(tagKey)
		if !ok || tag == "-" {
			continue
		}
		if !sf.IsExported() {
			return nil, fmt.Errorf("field %s of %s is tagged but unexported", sf.Name, t)
		}

		parts := strings.Split(tag, ",")
		info := FieldInfo{
			Name:    sf.Name,
			Index:   i,
			Type:    sf.Type,
			TypeKey: TypeKeyFromType(sf.Type),
			Named:   strings.TrimSpace(parts[0]),
		}

		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case "optional":
				info.Optional = true
			case "creator":
				info.Creator = true
			case "":
			default:
				return nil, fmt.Errorf("unknown option %q on field %s of %s", opt, sf.Name, t)
			}
		}

		if info.Creator && info.Named != "" {
			return nil, fmt.Errorf("creator field %s of %s cannot be named", sf.Name, t)
		}

		fields = append(fields, info)
	}

	return fields, nil
}
