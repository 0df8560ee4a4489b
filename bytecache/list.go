package bytecache

// entry is an intrusive doubly linked list node and the cache's stored
// value in one: the node IS the map value, so erase is O(1) given the
// pointer the map already handed back (component C1 of the cache design:
// an intrusive list of keys, here specialized to carry the cached bytes
// alongside the linkage).
type entry struct {
	key   string
	value []byte

	lastUpdated int64 // UnixNano; set on insert/update, not on touch
	freq        int

	prev, next *entry
}

// bucketList is a single frequency bucket: a doubly linked list with
// front = most-recently-touched, back = least-recently-touched within
// this frequency. All operations are O(1).
type bucketList struct {
	head, tail *entry
	size       int
}

// pushFront inserts e at the front (MRU position within the bucket).
func (l *bucketList) pushFront(e *entry) {
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	}
	l.head = e
	if l.tail == nil {
		l.tail = e
	}
	l.size++
}

// erase detaches e from the list in O(1). e must belong to this list.
func (l *bucketList) erase(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next = nil, nil
	l.size--
}

// back returns the least-recently-touched node, or nil if empty.
func (l *bucketList) back() *entry { return l.tail }

// empty reports whether the bucket holds no entries.
func (l *bucketList) empty() bool { return l.size == 0 }
