// Package reconcile keeps the local store and the remote document store
// approximately consistent: merge on read, best-effort dual write.
//
// The conflict policy is remote-is-canonical. When both stores hold a
// record with the same dedup key the remote copy wins; records only one
// side knows about are kept.
package reconcile

// Record is an entity stored in both the local and remote stores.
type Record[T any] interface {
	// DedupKey identifies the record across stores. Records with an empty
	// key are never deduplicated.
	DedupKey() string
	// DocID is the remote document id, empty when never mirrored.
	DocID() string
	// DocVersion is the remote document version last seen.
	DocVersion() int64
	// WithDoc returns a copy carrying the given remote identity.
	WithDoc(id string, version int64) T
}

// Merge unions two collections. Remote records come first in remote
// order, followed by local-only records in local order. On a key
// collision the remote record is kept.
func Merge[T Record[T]](remoteRecs, localRecs []T) []T {
	merged, _ := MergeFunc(remoteRecs, localRecs, nil)
	return merged
}

// MergeFunc is Merge with a tie-break: on a key collision the local
// record is kept when preferLocal(remote, local) is true, carrying the
// remote document identity. Those records are also returned in kept so
// the caller can mirror them.
func MergeFunc[T Record[T]](remoteRecs, localRecs []T, preferLocal func(remote, local T) bool) (merged, kept []T) {
	var byKey map[string]T
	if preferLocal != nil {
		byKey = make(map[string]T, len(localRecs))
		for _, l := range localRecs {
			if k := l.DedupKey(); k != "" {
				if _, dup := byKey[k]; !dup {
					byKey[k] = l
				}
			}
		}
	}

	merged = make([]T, 0, len(remoteRecs)+len(localRecs))
	seen := make(map[string]bool, len(remoteRecs)+len(localRecs))
	add := func(r T) bool {
		if k := r.DedupKey(); k != "" {
			if seen[k] {
				return false
			}
			seen[k] = true
		}
		merged = append(merged, r)
		return true
	}
	for _, r := range remoteRecs {
		if l, ok := byKey[r.DedupKey()]; ok && !seen[r.DedupKey()] && preferLocal(r, l) {
			l = l.WithDoc(r.DocID(), r.DocVersion())
			if add(l) {
				kept = append(kept, l)
			}
			continue
		}
		add(r)
	}
	for _, r := range localRecs {
		add(r)
	}
	return merged, kept
}

// Upsert replaces the record with rec's dedup key, or appends rec.
func Upsert[T Record[T]](recs []T, rec T) []T {
	if k := rec.DedupKey(); k != "" {
		for i := range recs {
			if recs[i].DedupKey() == k {
				recs[i] = rec
				return recs
			}
		}
	}
	return append(recs, rec)
}

// Without removes every record with key. The second return reports
// whether anything was removed.
func Without[T Record[T]](recs []T, key string) ([]T, bool) {
	out := make([]T, 0, len(recs))
	found := false
	for _, r := range recs {
		if key != "" && r.DedupKey() == key {
			found = true
			continue
		}
		out = append(out, r)
	}
	return out, found
}
