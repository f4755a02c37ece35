// Package avl provides an ordered map and set backed by a self-balancing
// AVL tree. Keys are byte slices ordered by a caller-supplied comparator.
// The tree owns a private copy of every key it stores; values are held by
// reference and are never released by the tree unless the caller asks for
// it through Clear.
package avl

import (
	"bytes"
	"iter"
)

// Compare orders two keys. It returns a negative number when a sorts before
// b, zero when they are equal and a positive number otherwise.
type Compare func(a, b []byte) int

type node[V any] struct {
	key    []byte
	value  V
	left   *node[V]
	right  *node[V]
	height int
}

// Map is an ordered associative container. The zero value is not usable;
// create maps with NewMap.
type Map[V any] struct {
	root   *node[V]
	length int
	cmp    Compare
}

// NewMap returns an empty map ordered by cmp. A nil cmp orders keys
// bytewise.
func NewMap[V any](cmp Compare) *Map[V] {
	if cmp == nil {
		cmp = bytes.Compare
	}
	return &Map[V]{cmp: cmp}
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int {
	return m.length
}

// Compare returns the comparator the map was created with.
func (m *Map[V]) Compare() Compare {
	return m.cmp
}

// Insert stores value at key. When the key is new its bytes are copied
// and replaced is false. When the key already exists the stored value is
// swapped for value and the previous value is returned with replaced set.
func (m *Map[V]) Insert(key []byte, value V) (prev V, replaced bool) {
	m.root = m.insert(m.root, key, value, &prev, &replaced)
	if !replaced {
		m.length++
	}
	return prev, replaced
}

// Get returns the value stored at key.
func (m *Map[V]) Get(key []byte) (V, bool) {
	n := m.root
	for n != nil {
		c := m.cmp(key, n.key)
		switch {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (m *Map[V]) Contains(key []byte) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove detaches the entry at key and returns its value. Removing a key
// that is not present leaves the map untouched and returns false.
func (m *Map[V]) Remove(key []byte) (V, bool) {
	var (
		value V
		found bool
	)
	m.root = m.remove(m.root, key, &value, &found)
	if found {
		m.length--
	}
	return value, found
}

// Clear drops every entry. When release is non-nil it is called exactly
// once for each stored value, in post-order, before the node is dropped.
func (m *Map[V]) Clear(release func(V)) {
	clearNodes(m.root, release)
	m.root = nil
	m.length = 0
}

// All yields the entries in ascending key order. The yielded key slices
// belong to the map and must not be modified.
func (m *Map[V]) All() iter.Seq2[[]byte, V] {
	return func(yield func([]byte, V) bool) {
		stack := make([]*node[V], 0, m.root.h()+1)
		n := m.root
		for n != nil || len(stack) > 0 {
			for n != nil {
				stack = append(stack, n)
				n = n.left
			}
			n = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n.key, n.value) {
				return
			}
			n = n.right
		}
	}
}

// Keys yields the keys in ascending order.
func (m *Map[V]) Keys() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func (m *Map[V]) insert(n *node[V], key []byte, value V, prev *V, replaced *bool) *node[V] {
	if n == nil {
		return &node[V]{key: copyKey(key), value: value, height: 1}
	}
	c := m.cmp(key, n.key)
	switch {
	case c < 0:
		n.left = m.insert(n.left, key, value, prev, replaced)
	case c > 0:
		n.right = m.insert(n.right, key, value, prev, replaced)
	default:
		*prev = n.value
		*replaced = true
		n.value = value
		return n
	}
	return m.rebalanceInsert(n, key)
}

// rebalanceInsert restores the AVL property on the way back up from an
// insertion. The rotation case is picked from the balance factor and the
// side of the child the new key went to.
func (m *Map[V]) rebalanceInsert(n *node[V], key []byte) *node[V] {
	n.update()
	bf := n.balance()
	switch {
	case bf > 1 && m.cmp(key, n.left.key) < 0:
		return rotateRight(n)
	case bf < -1 && m.cmp(key, n.right.key) > 0:
		return rotateLeft(n)
	case bf > 1 && m.cmp(key, n.left.key) > 0:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case bf < -1 && m.cmp(key, n.right.key) < 0:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func (m *Map[V]) remove(n *node[V], key []byte, value *V, found *bool) *node[V] {
	if n == nil {
		return nil
	}
	c := m.cmp(key, n.key)
	switch {
	case c < 0:
		n.left = m.remove(n.left, key, value, found)
	case c > 0:
		n.right = m.remove(n.right, key, value, found)
	default:
		*value = n.value
		*found = true
		if n.left == nil || n.right == nil {
			child := n.left
			if child == nil {
				child = n.right
			}
			n.left, n.right, n.key = nil, nil, nil
			return child
		}
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		n.key = copyKey(succ.key)
		n.value = succ.value
		var (
			discard V
			ok      bool
		)
		n.right = m.remove(n.right, n.key, &discard, &ok)
	}
	return rebalanceRemove(n)
}

// rebalanceRemove restores the AVL property after a removal. Unlike
// insertion the removed key says nothing about which grandchild is heavy,
// so the children's balance factors decide the rotation.
func rebalanceRemove[V any](n *node[V]) *node[V] {
	n.update()
	bf := n.balance()
	switch {
	case bf > 1 && n.left.balance() >= 0:
		return rotateRight(n)
	case bf > 1:
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	case bf < -1 && n.right.balance() <= 0:
		return rotateLeft(n)
	case bf < -1:
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func rotateRight[V any](y *node[V]) *node[V] {
	x := y.left
	y.left = x.right
	x.right = y
	y.update()
	x.update()
	return x
}

func rotateLeft[V any](x *node[V]) *node[V] {
	y := x.right
	x.right = y.left
	y.left = x
	x.update()
	y.update()
	return y
}

func clearNodes[V any](n *node[V], release func(V)) {
	if n == nil {
		return
	}
	clearNodes(n.left, release)
	clearNodes(n.right, release)
	if release != nil {
		release(n.value)
	}
	n.left, n.right, n.key = nil, nil, nil
}

func (n *node[V]) h() int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node[V]) update() {
	n.height = 1 + max(n.left.h(), n.right.h())
}

func (n *node[V]) balance() int {
	if n == nil {
		return 0
	}
	return n.left.h() - n.right.h()
}

// copyKey is the only way keys enter the tree, both on insertion and when
// a successor is spliced into a removed node's slot.
func copyKey(key []byte) []byte {
	dup := make([]byte, len(key))
	copy(dup, key)
	return dup
}
