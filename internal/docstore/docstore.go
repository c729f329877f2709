// Package docstore defines the interface and path/field-name mapping
// convention for Firestore-backed DObjects (spec.md §6.2). No concrete
// backend is implemented here — durable persistence of server-backed
// objects is an explicit Non-goal (spec.md §1), and the wider spec scopes
// a real document-store client as external/out of scope. This package
// gives Firestore-backed field authority (dobject.BackingFirestore) a
// real interface to target.
package docstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"odin-dobj/internal/dobject"
)

// FieldSentinel marks a field for deletion in a Set call, since "delete"
// has no zero value of its own (spec.md §6.2 "Deletes use the store's
// field-delete sentinel").
type FieldSentinel int

const DeleteField FieldSentinel = 1

// Store is the narrow surface a Firestore-backed DObject needs: read the
// current document, and apply a set of field-level mutations atomically.
type Store interface {
	// Get reads the document at docPath, returning its fields keyed by
	// "{field_name}${field_id}" as spec.md §6.2 describes.
	Get(ctx context.Context, docPath string) (map[string]any, error)

	// Set writes the given field updates to docPath, creating the
	// document if absent. A value of DeleteField removes that field.
	Set(ctx context.Context, docPath string, fields map[string]any) error
}

// DocPath builds the external document path for path, joining
// "{collection_field_name}${collection_field_id}/{key}" segments
// (spec.md §6.2).
func DocPath(path dobject.Path, collectionFieldNames map[uint32]string) string {
	if len(path) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range path {
		if i > 0 {
			b.WriteByte('/')
		}
		name := collectionFieldNames[e.CollectionID]
		if name == "" {
			name = strconv.FormatUint(uint64(e.CollectionID), 10)
		}
		b.WriteString(name)
		b.WriteByte('$')
		b.WriteString(strconv.FormatUint(uint64(e.CollectionID), 10))
		b.WriteByte('/')
		b.WriteString(e.Key)
	}
	return b.String()
}

// FieldKey builds the document field name "{field_name}${field_id}"
// (spec.md §6.2).
func FieldKey(fieldName string, fieldID uint32) string {
	return fmt.Sprintf("%s$%d", fieldName, fieldID)
}

// SetValue converts a Set[T]'s snapshot into the store's
// "{element_string: true}" map form, so element-level add/remove is
// expressible without a read-modify-write (spec.md §6.2).
func SetValue[T comparable](elems []T, stringify func(T) string) map[string]any {
	out := make(map[string]any, len(elems))
	for _, e := range elems {
		out[stringify(e)] = true
	}
	return out
}

// MapValue converts a Map[K,V]'s snapshot into the store's
// "{key_string: value}" map form (spec.md §6.2).
func MapValue[K comparable, V any](entries map[K]V, stringifyKey func(K) string) map[string]any {
	out := make(map[string]any, len(entries))
	for k, v := range entries {
		out[stringifyKey(k)] = v
	}
	return out
}

// Vec3Value converts a vec3's three float32 components into the store's
// [x, y, z] doubles form
// (spec.md §6.2 "vec3 becomes [x, y, z] (doubles)").
func Vec3Value(x, y, z float32) []float64 {
	return []float64{float64(x), float64(y), float64(z)}
}
