package remote

// sizeCache tracks what is known about the remote file's size. It is the
// only place the active flag changes.
type sizeCache struct {
	// maxRemote is the high-water mark of the available byte count. It only
	// moves down through truncate.
	maxRemote int64
	// total is the last declared total size.
	total int64
	// known is false until the first SIZE response or truncate.
	known bool
	// active is sticky: once set it is never cleared.
	active      bool
	forceActive bool
}

func newSizeCache(forceActive bool) sizeCache {
	return sizeCache{active: forceActive, forceActive: forceActive}
}

// observe folds a SIZE response into the cache.
func (c *sizeCache) observe(available, total int64) {
	c.maxRemote = max(c.maxRemote, available)
	c.total = total
	c.known = true
	if available != total || c.forceActive {
		c.active = true
	}
}

// truncated records a successful truncate to n bytes.
func (c *sizeCache) truncated(n int64) {
	c.maxRemote = n
	c.known = true
}

// stale reports whether a read of count bytes at pos needs a fresh SIZE.
func (c *sizeCache) stale(pos, count int64) bool {
	return !c.known || (c.active && pos+count >= c.maxRemote)
}

// lengthStale reports whether Length must query the server.
func (c *sizeCache) lengthStale() bool {
	return !c.known || c.active
}

// clamp bounds count to the bytes between pos and known, never below zero.
func clamp(pos, count, known int64) int64 {
	return max(min(count, known-pos), 0)
}
