package linkedlist

// Node is the plain keyed element: a key, a value and its links.
type Node[T any] struct {
	key   string
	Value T
	links Links[*Node[T]]
}

// NewNode returns an unlinked node.
func NewNode[T any](key string, value T) *Node[T] {
	return &Node[T]{key: key, Value: value}
}

func (n *Node[T]) Key() string { return n.key }

func (n *Node[T]) Link() *Links[*Node[T]] { return &n.links }

func (n *Node[T]) Next() *Node[T] { return n.links.next }

func (n *Node[T]) Prev() *Node[T] { return n.links.prev }

// SwapPayload exchanges key and value with other.
func (n *Node[T]) SwapPayload(other *Node[T]) {
	n.key, other.key = other.key, n.key
	n.Value, other.Value = other.Value, n.Value
}
