package blocklist

// Set is an immutable snapshot of blocked hashes mapped to their messages.
type Set map[string]string

// Lookup implements the scorer's blocklist interface.
func (s Set) Lookup(contentHash string) (string, bool) {
	message, ok := s[contentHash]
	return message, ok
}

// Contains reports whether the hash is blocked.
func (s Set) Contains(contentHash string) bool {
	_, ok := s[contentHash]
	return ok
}
