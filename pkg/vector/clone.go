package vector

import (
	"reflect"
	"time"
)

// cloneMetadata returns a deep copy of m. Nested maps and slices are copied
// so neither the writer nor any reader shares memory with the stored record.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case map[string]any:
		return cloneMetadata(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		return append([]string(nil), t...)
	case []float32:
		if t == nil {
			return t
		}
		return append([]float32(nil), t...)
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

// cloneReflect covers typed slices, arrays, maps and pointers that the
// fast paths above do not name, e.g. []int or map[string]string.
func cloneReflect(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			out.Index(i).Set(cloneElem(rv.Index(i), rv.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := range rv.Len() {
			out.Index(i).Set(cloneElem(rv.Index(i), rv.Type().Elem()))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneElem(iter.Value(), rv.Type().Elem()))
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type().Elem())
		out.Elem().Set(cloneElem(rv.Elem(), rv.Type().Elem()))
		return out
	}
	return rv
}

// cloneElem clones one element and converts it back to the container's
// element type. Interface elements go through cloneValue.
func cloneElem(rv reflect.Value, typ reflect.Type) reflect.Value {
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Zero(typ)
		}
		return reflect.ValueOf(cloneValue(rv.Interface()))
	}
	return cloneReflect(rv)
}
