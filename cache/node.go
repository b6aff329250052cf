package cache

// node is an intrusive doubly linked list element owned by a shard.
// head is the most recently used entry, tail the least.
type node struct {
	entry Entry

	prev *node
	next *node
}
