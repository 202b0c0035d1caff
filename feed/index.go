package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/xraph/syndicate/id"
	"github.com/xraph/syndicate/post"
)

// ErrNotIndexed is returned when a direct post lookup finds no entry.
var ErrNotIndexed = errors.New("feed: post not indexed")

// Index is the Pebble-backed multi-key feed index. All entries derived from
// one source document are committed in a single batch, so concurrent readers
// observe either the prior version's entry set or the new one, never a mix.
type Index struct {
	db     *pebble.DB
	logger *slog.Logger
}

// sourceManifest tracks the keys currently derived from one source document
// so the next update for the same post can replace them atomically.
type sourceManifest struct {
	Version string   `json:"version"`
	Keys    [][]byte `json:"keys"`
}

// Open opens (or creates) a feed index at the given directory.
func Open(dir string, logger *slog.Logger) (*Index, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", dir, err)
	}
	return NewIndex(db, logger), nil
}

// NewIndex wraps an existing Pebble database.
func NewIndex(db *pebble.DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: db, logger: logger}
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Update applies one post version to the index: it derives the full set of
// dimension entries, removes the entries of the post's prior version, and
// commits everything in one atomic batch. Federated delivery may replay
// versions out of order, so an update that loses to the indexed entry under
// Resolve is dropped rather than clobbering the newer state.
func (ix *Index) Update(ctx context.Context, v *post.Version) error {
	entry := Entry{
		User:    v.Author,
		Post:    v.PostID,
		Version: v.ID,
		Date:    v.PublishedAt,
	}

	if indexed, err := ix.Get(ctx, v.Owner, v.PostID); err == nil {
		winner := Resolve(indexed, entry)
		if winner.Version.String() != entry.Version.String() {
			ix.logger.DebugContext(ctx, "feed index update superseded",
				"owner", v.Owner, "post", v.PostID, "version", v.ID, "indexed", indexed.Version)
			return nil
		}
	} else if !errors.Is(err, ErrNotIndexed) {
		return err
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("feed: marshal entry: %w", err)
	}

	keys := deriveKeys(v)

	b := ix.db.NewBatch()
	defer b.Close()

	// Drop the prior version's entries so stale dimension values
	// (changed type, removed mention) do not linger.
	srcKey := sourceKey(v.Owner, v.PostID.String())
	prior, err := ix.readManifest(srcKey)
	if err != nil {
		return err
	}
	for _, old := range prior.Keys {
		if err := b.Delete(old, nil); err != nil {
			return fmt.Errorf("feed: batch delete: %w", err)
		}
	}

	for _, key := range keys {
		if err := b.Set(key, value, nil); err != nil {
			return fmt.Errorf("feed: batch set: %w", err)
		}
	}

	manifest, err := json.Marshal(sourceManifest{Version: v.ID.String(), Keys: keys})
	if err != nil {
		return fmt.Errorf("feed: marshal manifest: %w", err)
	}
	if err := b.Set(srcKey, manifest, nil); err != nil {
		return fmt.Errorf("feed: batch set manifest: %w", err)
	}

	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("feed: commit update for %s: %w", v.PostID, err)
	}

	ix.logger.DebugContext(ctx, "feed index updated",
		"owner", v.Owner, "post", v.PostID, "version", v.ID, "entries", len(keys))
	return nil
}

// deriveKeys expands one source document into every dimension key it should
// appear under: the direct id key, the bare timeline, each first-level
// dimension, and every pairwise and triple combination, mirroring the
// filter sets a feed query may apply.
func deriveKeys(v *post.Version) [][]byte {
	owner := v.Owner
	postStr := v.PostID.String()
	ts := v.PublishedAt
	f := boolSegment(v.Following)

	keys := [][]byte{
		idKey(owner, postStr),
		entryKey(owner, tagAll, nil, ts, postStr),
		entryKey(owner, tagType, []string{v.Type}, ts, postStr),
		entryKey(owner, tagFollowing, []string{f}, ts, postStr),
		entryKey(owner, tagTypeFollowing, []string{v.Type, f}, ts, postStr),
	}

	seen := make(map[string]struct{}, len(v.Mentions))
	for _, m := range v.Mentions {
		if m.Entity == "" {
			continue
		}
		if _, dup := seen[m.Entity]; dup {
			continue
		}
		seen[m.Entity] = struct{}{}

		keys = append(keys,
			entryKey(owner, tagMention, []string{m.Entity}, ts, postStr),
			entryKey(owner, tagTypeMention, []string{v.Type, m.Entity}, ts, postStr),
			entryKey(owner, tagFollowingMention, []string{f, m.Entity}, ts, postStr),
			entryKey(owner, tagTypeFollowingMention, []string{v.Type, f, m.Entity}, ts, postStr),
		)
	}

	return keys
}

// Get returns the index entry for a specific post via the direct id key.
func (ix *Index) Get(_ context.Context, owner string, postID id.ID) (Entry, error) {
	raw, closer, err := ix.db.Get(idKey(owner, postID.String()))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Entry{}, ErrNotIndexed
		}
		return Entry{}, fmt.Errorf("feed: get %s: %w", postID, err)
	}
	defer closer.Close()

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("feed: decode entry for %s: %w", postID, err)
	}
	return entry, nil
}

// Query returns one page of entries for the owner under the given dimension
// selection, ordered by the trailing timestamp key component. Every filter
// combination maps to its own key family, so range scans never touch entries
// outside the requested dimensions.
func (ix *Index) Query(_ context.Context, owner string, dims Dims, r Range) ([]Entry, error) {
	tag, values := queryTag(dims)
	prefix := dimPrefix(owner, tag, values...)

	lower := prefix
	if !r.Since.IsZero() {
		lower = appendTimestamp(append([]byte{}, prefix...), r.Since)
	}
	upper := keyUpperBound(prefix)
	if !r.Before.IsZero() {
		upper = appendTimestamp(append([]byte{}, prefix...), r.Before)
	}

	iter, err := ix.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: open iterator: %w", err)
	}
	defer iter.Close()

	var entries []Entry

	advance := func() bool {
		if r.Descending {
			return iter.Prev()
		}
		return iter.Next()
	}
	var ok bool
	if r.Descending {
		ok = iter.Last()
	} else {
		ok = iter.First()
	}

	for ; ok; ok = advance() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("feed: decode entry at %q: %w", iter.Key(), err)
		}
		entries = append(entries, entry)

		if r.Limit > 0 && len(entries) >= r.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("feed: scan: %w", err)
	}

	return entries, nil
}

// readManifest loads the source manifest for a post, returning an empty
// manifest when the post was never indexed.
func (ix *Index) readManifest(key []byte) (sourceManifest, error) {
	raw, closer, err := ix.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return sourceManifest{}, nil
		}
		return sourceManifest{}, fmt.Errorf("feed: read manifest: %w", err)
	}
	defer closer.Close()

	var m sourceManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return sourceManifest{}, fmt.Errorf("feed: decode manifest: %w", err)
	}
	return m, nil
}
