// Package resolver walks a dobject.Path from a root object, one
// Collection hop at a time, to find (or lazily construct) the object a
// client Subscribe request names (spec.md §4.3 "Given Resolve(session,
// path, index)...").
package resolver

import (
	"context"
	"fmt"

	"odin-dobj/internal/dobject"
)

// Resolve walks path from root, consulting root's field table for
// path[0].CollectionID, recursing into the returned child for the
// remaining elements. Only a Collection field may appear at a path
// position; anything else is a *dobject.FriendlyException so the caller
// can report it as SubscribeFailed{cause} without leaking internals.
//
// subscriber is passed through uninterpreted to each Collection's
// can_access predicate.
func Resolve(ctx context.Context, root dobject.Resolvable, path dobject.Path, subscriber any) (dobject.Resolvable, error) {
	current := root
	for _, elem := range path {
		obj := current.Obj()
		f, ok := obj.Field(elem.CollectionID)
		if !ok {
			return nil, &dobject.FriendlyException{Cause: fmt.Sprintf("no such collection %d at %s", elem.CollectionID, obj.Path())}
		}
		cf, ok := f.(dobject.CollectionField)
		if !ok {
			return nil, &dobject.FriendlyException{Cause: fmt.Sprintf("field %d at %s is not a collection", elem.CollectionID, obj.Path())}
		}
		child, err := cf.ResolveAny(ctx, subscriber, elem.Key)
		if err != nil {
			return nil, err
		}
		next, ok := child.(dobject.Resolvable)
		if !ok {
			return nil, &dobject.FriendlyException{Cause: fmt.Sprintf("collection %d key %q did not resolve to an object", elem.CollectionID, elem.Key)}
		}
		current = next
	}
	return current, nil
}

// ResolveForSubscribe is the server-side entry point for a meta-queue
// Subscribe request. It returns the resolved object, or a *FriendlyException
// cause suitable for a SubscribeFailed response. The raw error is also
// returned so the caller can log it server-side even when the reported
// cause has been genericised (spec.md §7 "Anything else thrown during
// subscription is logged server-side only").
func ResolveForSubscribe(ctx context.Context, root dobject.Resolvable, path dobject.Path, subscriber any) (dobject.Resolvable, *dobject.FriendlyException, error) {
	obj, err := Resolve(ctx, root, path, subscriber)
	if err != nil {
		if fe, ok := dobject.IsFriendly(err); ok {
			return nil, fe, err
		}
		return nil, &dobject.FriendlyException{Cause: "subscribe failed"}, err
	}
	return obj, nil, nil
}
