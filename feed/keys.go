package feed

import (
	"encoding/binary"
	"net/url"
	"time"
)

// Key prefixes for feed index data structures.
const (
	prefixEntry  = "fd/" // dimension entries
	prefixSource = "fs/" // per-source-document entry manifests
)

// Dimension tags. The tag names the key family; the escaped dimension values
// follow it, then the big-endian millisecond timestamp, then the post ID so
// equal-time entries stay distinct.
const (
	tagAll                  = "all"
	tagID                   = "id"
	tagType                 = "type"
	tagFollowing            = "following"
	tagMention              = "mention"
	tagTypeFollowing        = "type+following"
	tagTypeMention          = "type+mention"
	tagFollowingMention     = "following+mention"
	tagTypeFollowingMention = "type+following+mention"
)

// escape makes a dimension value safe as a key segment. Entity URIs contain
// '/' which would otherwise collide with the segment separator.
func escape(v string) string {
	return url.QueryEscape(v)
}

func boolSegment(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// dimPrefix returns the key prefix for one owner + dimension family:
// fd/{owner}/{tag}/{values.../}
func dimPrefix(owner, tag string, values ...string) []byte {
	key := prefixEntry + escape(owner) + "/" + tag + "/"
	for _, v := range values {
		key += escape(v) + "/"
	}
	return []byte(key)
}

// entryKey appends the timestamp and post components to a dimension prefix:
// fd/{owner}/{tag}/{values.../}{ts8}/{post}
func entryKey(owner, tag string, values []string, ts time.Time, post string) []byte {
	prefix := dimPrefix(owner, tag, values...)
	key := make([]byte, 0, len(prefix)+8+1+len(post))
	key = append(key, prefix...)
	key = appendTimestamp(key, ts)
	key = append(key, '/')
	key = append(key, post...)
	return key
}

// idKey is the direct-lookup key for a post: fd/{owner}/id/{post}
func idKey(owner, post string) []byte {
	return []byte(prefixEntry + escape(owner) + "/" + tagID + "/" + post)
}

// sourceKey holds the manifest of keys currently derived from one source
// document: fs/{owner}/{post}
func sourceKey(owner, post string) []byte {
	return []byte(prefixSource + escape(owner) + "/" + post)
}

// appendTimestamp appends the big-endian millisecond timestamp so byte order
// equals time order within a dimension.
func appendTimestamp(key []byte, ts time.Time) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts.UnixMilli()))
	return append(key, buf[:]...)
}

// keyUpperBound returns the exclusive upper bound for scanning everything
// under prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix)+1)
	copy(end, prefix)
	end[len(prefix)] = 0xFF
	return end
}

// queryTag maps a dimension selection to its key family and value segments.
func queryTag(d Dims) (tag string, values []string) {
	switch {
	case d.Type != "" && d.Following != nil && d.Mention != "":
		return tagTypeFollowingMention, []string{d.Type, boolSegment(*d.Following), d.Mention}
	case d.Type != "" && d.Following != nil:
		return tagTypeFollowing, []string{d.Type, boolSegment(*d.Following)}
	case d.Type != "" && d.Mention != "":
		return tagTypeMention, []string{d.Type, d.Mention}
	case d.Following != nil && d.Mention != "":
		return tagFollowingMention, []string{boolSegment(*d.Following), d.Mention}
	case d.Type != "":
		return tagType, []string{d.Type}
	case d.Following != nil:
		return tagFollowing, []string{boolSegment(*d.Following)}
	case d.Mention != "":
		return tagMention, []string{d.Mention}
	default:
		return tagAll, nil
	}
}
