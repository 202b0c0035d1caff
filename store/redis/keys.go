package redis

// Key prefixes for primary entity storage.
const (
	prefixCredential = "syn:cred:"
	prefixPost       = "syn:post:"  // + owner|postID
	prefixVersion    = "syn:ver:"   // + owner|postID|versionID
	prefixPostType   = "syn:ptype:" // + type name
	prefixSub        = "syn:sub:"
	prefixApp        = "syn:app:"
	prefixFailure    = "syn:flr:"
)

// Key prefixes for sorted set indexes.
const (
	zVersionsPost = "syn:z:ver:" // + owner|postID, scored by published time
	zSubOwner     = "syn:z:sub:" // + owner, scored by creation time
	zAppOwner     = "syn:z:app:" // + owner, scored by creation time
	zFailureAll   = "syn:z:flr:all"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// postRef joins an owner URI and post ID into one index component.
func postRef(owner, postID string) string {
	return owner + "|" + postID
}

// versionRef joins an owner URI, post ID, and version ID.
func versionRef(owner, postID, versionID string) string {
	return owner + "|" + postID + "|" + versionID
}
