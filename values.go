// values.go: Field value helpers
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import "reflect"

// valuesEqual compares two field values. Scalars take the fast path;
// maps, slices and anything else fall back to reflect.DeepEqual.
func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

// copyValue returns a copy of v that shares no maps or slices with it.
// Pointers, channels and functions are kept as they are.
func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val
	case map[string]interface{}:
		return deepCopy(val)
	case []interface{}:
		return deepCopySlice(val)
	default:
		return copyReflect(val)
	}
}

// copyReflect copies typed maps and slices such as []string or
// map[string]int, keeping their type
func copyReflect(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		dst := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			dst.Index(i).Set(copyElem(rv.Index(i), rv.Type().Elem()))
		}
		return dst.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		dst := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			dst.SetMapIndex(iter.Key(), copyElem(iter.Value(), rv.Type().Elem()))
		}
		return dst.Interface()
	case reflect.Array:
		dst := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			dst.Index(i).Set(copyElem(rv.Index(i), rv.Type().Elem()))
		}
		return dst.Interface()
	default:
		return v
	}
}

func copyElem(elem reflect.Value, typ reflect.Type) reflect.Value {
	copied := copyValue(elem.Interface())
	if copied == nil {
		return reflect.Zero(typ)
	}
	return reflect.ValueOf(copied)
}

// deepCopy creates a deep copy of a field map
func deepCopy(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

// deepCopySlice creates a deep copy of a slice
func deepCopySlice(src []interface{}) []interface{} {
	if src == nil {
		return nil
	}

	dst := make([]interface{}, len(src))
	for i, v := range src {
		dst[i] = copyValue(v)
	}
	return dst
}
