package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/partstock-io/partstock/internal/normalize"
)

// Entity is the engine's view of a stored part: an opaque identifier plus
// the flat attribute map the merge rules operate on. The storage layer owns
// the full row; the engine never sees columns it does not merge.
type Entity struct {
	ID    string
	Attrs map[string]string
}

// KeyedLookup is the storage collaborator. Each call must be individually
// atomic, and reads must observe writes issued earlier in the same run;
// cross-run isolation is the collaborator's concern, not the engine's.
type KeyedLookup interface {
	// FindByKey returns the entity with the given normalized identity,
	// or nil when none exists.
	FindByKey(ctx context.Context, key NormalizedKey) (*Entity, error)

	// Create persists a new entity for the record and returns it.
	Create(ctx context.Context, rec *Record) (*Entity, error)

	// Update applies the changed attributes to an existing entity.
	Update(ctx context.Context, ent *Entity, changed map[string]string) (*Entity, error)
}

// Resolver decides, per record, whether to create a new entity, merge into
// an existing one, or flag the row - and carries the dry-run shadow state
// that keeps dry-run outcome counts identical to a real run.
type Resolver struct {
	lookup KeyedLookup
	dryRun bool

	// shadow holds entities "written" during a dry run, so later rows in
	// the same input classify exactly as they would against real storage.
	shadow map[NormalizedKey]*Entity
}

// NewResolver wraps a storage collaborator. In dry-run mode the decision
// logic is unchanged but Create/Update are never invoked.
func NewResolver(lookup KeyedLookup, dryRun bool) *Resolver {
	rv := &Resolver{lookup: lookup, dryRun: dryRun}
	if dryRun {
		rv.shadow = make(map[NormalizedKey]*Entity)
	}
	return rv
}

// Resolve runs the dedup/upsert decision for one record.
//
// Merge policy: an empty field on the existing entity is filled from the
// incoming record; a populated field is never overwritten. When both sides
// have different non-empty values the row is flagged as a conflict error,
// but the non-conflicting fields still merge.
func (rv *Resolver) Resolve(ctx context.Context, rec *Record) Outcome {
	key := rec.Key()
	if key.Incomplete() {
		return Outcome{Status: StatusError, Key: key, Reason: "missing manufacturer or part number"}
	}

	ent, err := rv.find(ctx, key)
	if err != nil {
		return Outcome{Status: StatusError, Key: key, Reason: fmt.Sprintf("lookup failed: %v", err)}
	}

	if ent == nil {
		if rv.dryRun {
			rv.shadow[key] = &Entity{Attrs: rec.Attrs()}
		} else if _, err := rv.lookup.Create(ctx, rec); err != nil {
			return Outcome{Status: StatusError, Key: key, Reason: fmt.Sprintf("create failed: %v", err)}
		}
		return Outcome{Status: StatusCreated, Key: key}
	}

	changed, conflicts := merge(ent.Attrs, rec.Attrs())

	if len(changed) > 0 {
		if rv.dryRun {
			for name, val := range changed {
				ent.Attrs[name] = val
			}
		} else if _, err := rv.lookup.Update(ctx, ent, changed); err != nil {
			return Outcome{Status: StatusError, Key: key, Reason: fmt.Sprintf("update failed: %v", err)}
		}
	}

	switch {
	case len(conflicts) > 0:
		return Outcome{
			Status: StatusError,
			Key:    key,
			Reason: fmt.Sprintf("conflicting values for %s", strings.Join(conflicts, ", ")),
		}
	case len(changed) > 0:
		return Outcome{Status: StatusUpdated, Key: key}
	default:
		return Outcome{Status: StatusSkipped, Key: key}
	}
}

// find consults the dry-run shadow before storage, giving a dry run the
// same read-your-writes visibility a real run gets from the collaborator.
func (rv *Resolver) find(ctx context.Context, key NormalizedKey) (*Entity, error) {
	if rv.dryRun {
		if ent, ok := rv.shadow[key]; ok {
			return ent, nil
		}
	}

	ent, err := rv.lookup.FindByKey(ctx, key)
	if err != nil || ent == nil {
		return ent, err
	}

	if rv.dryRun {
		// Clone before the shadow mutates it; the caller's entity must
		// stay untouched in a dry run.
		clone := &Entity{ID: ent.ID, Attrs: make(map[string]string, len(ent.Attrs))}
		for k, v := range ent.Attrs {
			clone.Attrs[k] = v
		}
		rv.shadow[key] = clone
		return clone, nil
	}
	return ent, nil
}

// merge computes the field-level merge of incoming attributes into
// existing ones. It returns the fields to fill (empty on the existing
// side, non-empty incoming) and the sorted names of conflicting fields
// (non-empty and different on both sides).
func merge(existing, incoming map[string]string) (changed map[string]string, conflicts []string) {
	changed = make(map[string]string)
	for name, val := range incoming {
		have, ok := existing[name]
		switch {
		case !ok || have == "":
			changed[name] = val
		case have != val:
			if fieldsEquivalent(name, have, val) {
				continue
			}
			conflicts = append(conflicts, name)
		}
	}
	sort.Strings(conflicts)
	return changed, conflicts
}

// fieldsEquivalent reports whether two differing raw values are the same
// under the field's own equality. Identity fields compare normalized:
// "Murata" and "murata" name the same manufacturer, and casing drift in
// supplier files must not read as a conflict.
func fieldsEquivalent(name, a, b string) bool {
	if name == FieldManufacturer || name == FieldPartNumber {
		return normalize.Identity(a) == normalize.Identity(b)
	}
	return false
}
