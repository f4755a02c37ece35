package avl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInvariants walks the whole tree and fails the test if any cached
// height is stale, any node is out of balance, the keys are not strictly
// ascending, or the cached length disagrees with the reachable nodes.
func checkInvariants[V any](t *testing.T, m *Map[V]) {
	t.Helper()
	var prev []byte
	count := 0
	var walk func(n *node[V]) int
	walk = func(n *node[V]) int {
		if n == nil {
			return 0
		}
		lh := walk(n.left)
		if prev != nil {
			require.Negative(t, m.cmp(prev, n.key), "keys out of order at %x", n.key)
		}
		prev = n.key
		count++
		rh := walk(n.right)
		require.Equal(t, 1+max(lh, rh), n.height, "stale height at %x", n.key)
		bf := lh - rh
		require.True(t, bf >= -1 && bf <= 1, "balance factor %d at %x", bf, n.key)
		return n.height
	}
	walk(m.root)
	require.Equal(t, count, m.Len())
}

func key(i int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(i))
	return b
}

func TestInsertGet(t *testing.T) {
	m := NewMap[string](nil)
	prev, replaced := m.Insert([]byte("cat"), "first")
	assert.False(t, replaced)
	assert.Empty(t, prev)

	v, ok := m.Get([]byte("cat"))
	require.True(t, ok)
	assert.Equal(t, "first", v)

	prev, replaced = m.Insert([]byte("cat"), "second")
	assert.True(t, replaced)
	assert.Equal(t, "first", prev)
	assert.Equal(t, 1, m.Len())

	v, _ = m.Get([]byte("cat"))
	assert.Equal(t, "second", v)

	_, ok = m.Get([]byte("dog"))
	assert.False(t, ok)
}

func TestInsertCopiesKey(t *testing.T) {
	m := NewMap[int](nil)
	k := []byte("abc")
	m.Insert(k, 1)
	k[0] = 'z'

	_, ok := m.Get([]byte("abc"))
	assert.True(t, ok, "map must keep its own copy of the key")
	_, ok = m.Get([]byte("zbc"))
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	m := NewMap[int](nil)

	_, ok := m.Remove([]byte("missing"))
	assert.False(t, ok, "remove on empty map")
	assert.Equal(t, 0, m.Len())

	for i := range 10 {
		m.Insert(key(i), i)
	}
	_, ok = m.Remove(key(42))
	assert.False(t, ok)
	assert.Equal(t, 10, m.Len())

	v, ok := m.Remove(key(3))
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 9, m.Len())
	_, ok = m.Get(key(3))
	assert.False(t, ok)
	checkInvariants(t, m)
}

func TestRemoveTwoChildrenBinaryKeys(t *testing.T) {
	// Keys with embedded zero bytes must survive successor splicing intact.
	m := NewMap[int](nil)
	keys := [][]byte{
		{0x00, 0x05, 0x00},
		{0x00, 0x02, 0x00, 0x01},
		{0x00, 0x08},
		{0x00, 0x01},
		{0x00, 0x03, 0x00, 0x00, 0x07},
		{0x00, 0x07},
		{0x00, 0x09, 0x00},
	}
	for i, k := range keys {
		m.Insert(k, i)
	}
	root := slices.Clone(m.root.key)
	_, ok := m.Remove(root)
	require.True(t, ok)
	checkInvariants(t, m)

	for i, k := range keys {
		if bytes.Equal(k, root) {
			continue
		}
		v, ok := m.Get(k)
		require.True(t, ok, "lost key %x", k)
		assert.Equal(t, i, v)
	}
}

func TestRandomOperationsKeepBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(1101))
	m := NewMap[int](nil)
	ref := make(map[int]int)

	for step := range 5000 {
		k := rng.Intn(500)
		if rng.Intn(3) == 0 {
			v, ok := m.Remove(key(k))
			want, exists := ref[k]
			require.Equal(t, exists, ok, "step %d remove %d", step, k)
			if exists {
				assert.Equal(t, want, v)
			}
			delete(ref, k)
		} else {
			prev, replaced := m.Insert(key(k), step)
			want, exists := ref[k]
			require.Equal(t, exists, replaced, "step %d insert %d", step, k)
			if exists {
				assert.Equal(t, want, prev)
			}
			ref[k] = step
		}
		if step%50 == 0 {
			checkInvariants(t, m)
		}
	}
	checkInvariants(t, m)
	require.Equal(t, len(ref), m.Len())
	for k, v := range ref {
		got, ok := m.Get(key(k))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestSequentialInsertRotations(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{"ascending", []int{1, 2, 3, 4, 5, 6, 7, 8}},
		{"descending", []int{8, 7, 6, 5, 4, 3, 2, 1}},
		{"left-right", []int{30, 10, 20}},
		{"right-left", []int{10, 30, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap[int](nil)
			for _, k := range tt.order {
				m.Insert(key(k), k)
				checkInvariants(t, m)
			}
		})
	}
}

func TestAllIsOrdered(t *testing.T) {
	m := NewMap[int](nil)
	for _, w := range []string{"pear", "apple", "fig", "kiwi", "banana"} {
		m.Insert([]byte(w), len(w))
	}
	var got []string
	for k, v := range m.All() {
		got = append(got, fmt.Sprintf("%s=%d", k, v))
	}
	assert.Equal(t, []string{"apple=5", "banana=6", "fig=3", "kiwi=4", "pear=4"}, got)

	var first []string
	for k := range m.Keys() {
		first = append(first, string(k))
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"apple", "banana"}, first)
}

func TestCustomComparator(t *testing.T) {
	reverse := func(a, b []byte) int { return bytes.Compare(b, a) }
	m := NewMap[int](reverse)
	for i := range 5 {
		m.Insert(key(i), i)
	}
	var got []int
	for _, v := range m.All() {
		got = append(got, v)
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0}, got)
	checkInvariants(t, m)
}

func TestClearReleasesEachValueOnce(t *testing.T) {
	m := NewMap[*int](nil)
	values := make([]*int, 100)
	for i := range values {
		v := i
		values[i] = &v
		m.Insert(key(i), values[i])
	}
	released := make(map[*int]int)
	m.Clear(func(v *int) { released[v]++ })

	assert.Equal(t, 0, m.Len())
	assert.Len(t, released, 100)
	for _, n := range released {
		assert.Equal(t, 1, n)
	}
	_, ok := m.Get(key(1))
	assert.False(t, ok)

	m.Clear(nil)
}

func BenchmarkInsert(b *testing.B) {
	b.ReportAllocs()
	m := NewMap[int](nil)
	for i := 0; i < b.N; i++ {
		m.Insert(key(i), i)
	}
}

func BenchmarkGet(b *testing.B) {
	m := NewMap[int](nil)
	for i := range 100000 {
		m.Insert(key(i), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Get(key(i % 100000))
	}
}
