package runtime

import "math/bits"

// node is one slot of a table's hash part (§3 "Table"). next is a delta to
// the next node in this key's collision chain, 0 meaning "no further link".
// used stays set (with the node marked dead) after a delete so that
// `next` traversal can still find iteration successors (§4.3 "Deleted hash
// entries keep their key tag marked dead").
type node struct {
	key   Value
	value Value
	next  int32
	used  bool // true while the slot holds a live (key,value) pair
	dead  bool // true for a slot whose key was deleted but must stay visible to next()
}

// fast-metamethod cache bits (§4.3 "Fast-metamethod cache" / GLOSSARY).
const (
	tmIndex = 1 << iota
	tmNewIndex
	tmGC
	tmMode
	tmLen
	tmEq
)

// Table is the hybrid array+hash structure of §3/§4.3.
type Table struct {
	gcHeader

	g *GlobalState // owner, for the back barrier on Set

	array []Value // dense prefix, logical indices 1..alimit
	alimitIsReal bool

	hashNodes []node
	hashSize  int // power of two, len(hashNodes); 0 means no hash part
	lastFree  int // cursor that sweeps downward looking for a free hash slot

	metatable *Table
	absentTM  uint8 // fast-metamethod absence cache, §4.3
}

func (*Table) Type() Type      { return TypeTable }
func (*Table) Truthy() bool    { return true }
func (t *Table) String() string { return "table" }

// NewTable allocates an empty table registered with g's collector.
func NewTable(g *GlobalState) *Table {
	t := &Table{g: g, alimitIsReal: true}
	g.gc.register(t)
	return t
}

// NewTableSized preallocates narr array slots and a hash part sized to hold
// at least nhash entries, per the NEWTABLE size-hint opcode (§4.8).
func NewTableSized(g *GlobalState, narr, nhash int) *Table {
	t := &Table{g: g, alimitIsReal: true}
	if narr > 0 {
		t.array = make([]Value, narr)
		for i := range t.array {
			t.array[i] = NilOf(NilEmptySlot)
		}
	}
	if nhash > 0 {
		t.resizeHash(npot(nhash))
	}
	g.gc.register(t)
	return t
}

func npot(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 << bits.Len(uint(n-1))
}

// normalizeKey canonicalizes a key the way Lua does before indexing: a float
// key with an exact integer value is treated as that integer, so that
// t[1] and t[1.0] address the same slot.
func normalizeKey(k Value) Value {
	if f, ok := k.(Float); ok {
		if i := int64(f); Float(i) == f {
			return Int(i)
		}
	}
	return k
}

func arrayIndex(k Value) (int, bool) {
	i, ok := k.(Int)
	if !ok {
		return 0, false
	}
	if i < 1 {
		return 0, false
	}
	return int(i), true
}

// Get implements §4.3 `get(t, k)`. Absent keys return NilOf(NilAbsentKey).
func (t *Table) Get(k Value) Value {
	k = normalizeKey(k)
	if i, ok := arrayIndex(k); ok && i <= len(t.array) {
		v := t.array[i-1]
		if IsNil(v) {
			return NilOf(NilAbsentKey)
		}
		return v
	}
	if t.hashSize == 0 {
		return NilOf(NilAbsentKey)
	}
	idx := t.mainPosition(k)
	for {
		n := &t.hashNodes[idx]
		if n.used && !n.dead && valuesRawEqual(n.key, k) {
			return n.value
		}
		if n.next == 0 {
			return NilOf(NilAbsentKey)
		}
		idx += int(n.next)
	}
}

// Set implements §4.3 `set(t, k, v)`. Writing nil deletes the key, leaving a
// dead-marked node behind if it lived in the hash part (so concurrent
// `next` traversal stays well defined).
func (t *Table) Set(k, v Value) {
	t.absentTM = 0 // any write invalidates the fast-metamethod cache
	k = normalizeKey(k)

	if Collectable(v) {
		t.g.gc.backBarrier(t)
	}

	if i, ok := arrayIndex(k); ok {
		if i <= len(t.array) {
			t.array[i-1] = v
			return
		}
		if i == len(t.array)+1 && !IsNil(v) {
			t.array = append(t.array, v)
			t.migrateFromHash()
			return
		}
	}

	if IsNil(v) {
		t.deleteHash(k)
		return
	}
	t.setHash(k, v)
}

func valuesRawEqual(a, b Value) bool {
	if sa, ok := a.(*StringObj); ok {
		if sb, ok := b.(*StringObj); ok {
			return StringsEqual(sa, sb)
		}
		return false
	}
	switch av := a.(type) {
	case Int:
		if bv, ok := b.(Int); ok {
			return av == bv
		}
		if bv, ok := b.(Float); ok {
			return Float(av) == bv
		}
	case Float:
		if bv, ok := b.(Float); ok {
			return av == bv
		}
		if bv, ok := b.(Int); ok {
			return av == Float(bv)
		}
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case NilValue:
		_, ok := b.(NilValue)
		return ok
	}
	return a == b // same collectable object identity (tables, closures, ...)
}

func (t *Table) mainPosition(k Value) int {
	if t.hashSize == 0 {
		return 0
	}
	var h uint32
	switch kv := k.(type) {
	case *StringObj:
		h = kv.Hash(0)
	case Int:
		h = uint32(kv) ^ uint32(uint64(kv)>>32)
	case Float:
		bits := int64(kv)
		h = uint32(bits) ^ uint32(uint64(bits)>>32)
	case Bool:
		if kv {
			h = 1
		}
	default:
		h = 0 // collectable keys hash by identity in a real build; stable 0 keeps this deterministic for tests
	}
	return int(h) & (t.hashSize - 1)
}

// setHash inserts k=v into the hash part, implementing the main-position /
// Brent's-variation eviction scheme of §4.3.
func (t *Table) setHash(k, v Value) {
	if t.hashSize == 0 {
		t.resizeHash(1)
	}
	for {
		idx := t.mainPosition(k)
		n := &t.hashNodes[idx]
		if !n.used {
			n.used, n.key, n.value, n.next, n.dead = true, k, v, 0, false
			return
		}
		if !n.dead && valuesRawEqual(n.key, k) {
			n.value = v
			return
		}
		// Slot occupied by something else (or by a dead tombstone): find
		// where the occupant actually wants to live.
		free := t.freeSlot()
		if free < 0 {
			t.rehash(1)
			continue
		}
		if n.dead || valuesRawEqual(n.key, k) {
			// a dead tombstone (for any key) or k itself; reuse it in place,
			// keeping its chain link
			n.used, n.key, n.value, n.dead = true, k, v, false
			return
		}
		mp := t.mainPosition(n.key)
		if mp == idx {
			// occupant is at its own main position: chain the new key off it
			t.hashNodes[free] = node{used: true, key: k, value: v}
			n.next = int32(free - idx)
			return
		}
		// occupant is displaced from its main position: evict it to a free
		// slot, splice the chain, and take its slot for k.
		t.evictTo(idx, mp, free)
		n = &t.hashNodes[idx]
		n.used, n.key, n.value, n.next, n.dead = true, k, v, 0, false
		return
	}
}

// evictTo moves the occupant currently at idx (whose main position is mp)
// to slot free, fixing up mp's collision chain to point at its new home.
func (t *Table) evictTo(idx, mp, free int) {
	old := t.hashNodes[idx]
	t.hashNodes[free] = node{used: true, key: old.key, value: old.value, next: 0}
	// Re-chain: walk mp's chain to find the link that pointed at idx.
	p := mp
	for {
		pn := &t.hashNodes[p]
		if p+int(pn.next) == idx {
			pn.next = int32(free - p)
			break
		}
		p += int(pn.next)
	}
	if old.next != 0 {
		t.hashNodes[free].next = int32(idx+int(old.next)-free)
	}
}

// freeSlot returns the next unused hash slot, sweeping lastFree downward,
// or -1 if none remain.
func (t *Table) freeSlot() int {
	for t.lastFree > 0 {
		t.lastFree--
		if !t.hashNodes[t.lastFree].used {
			return t.lastFree
		}
	}
	return -1
}

func (t *Table) deleteHash(k Value) {
	if t.hashSize == 0 {
		return
	}
	idx := t.mainPosition(k)
	for {
		n := &t.hashNodes[idx]
		if n.used && !n.dead && valuesRawEqual(n.key, k) {
			n.value = NilOf(NilEmptySlot)
			n.dead = true
			return
		}
		if n.next == 0 {
			return
		}
		idx += int(n.next)
	}
}

// resizeHash grows the hash part to the given power-of-two size.
func (t *Table) resizeHash(size int) {
	if size < 1 {
		t.hashNodes = nil
		t.hashSize = 0
		return
	}
	t.hashNodes = make([]node, size)
	t.hashSize = size
	t.lastFree = size
}

// rehash grows to accommodate at least extra additional live entries,
// reinserting everything (§4.3 `resize`).
func (t *Table) rehash(extra int) {
	live := t.liveHashEntries()
	newSize := npot(len(live) + extra)
	if newSize < 1 {
		newSize = 1
	}
	old := t.hashNodes
	_ = old
	t.resizeHash(newSize)
	for _, kv := range live {
		t.setHash(kv.key, kv.value)
	}
}

func (t *Table) liveHashEntries() []node {
	out := make([]node, 0, t.hashSize)
	for _, n := range t.hashNodes {
		if n.used && !n.dead {
			out = append(out, n)
		}
	}
	return out
}

// migrateFromHash pulls any hash-part entries whose integer key now extends
// the array part's dense prefix into the array, mirroring how a real
// rehash picks array vs hash sizes by histogram; here it is done
// incrementally on array growth instead of only at full Resize.
func (t *Table) migrateFromHash() {
	for {
		next := Int(len(t.array) + 1)
		idx := t.mainPosition(next)
		if t.hashSize == 0 {
			return
		}
		n := &t.hashNodes[idx]
		found := false
		for cur, ci := n, idx; ; {
			if cur.used && !cur.dead && valuesRawEqual(cur.key, next) {
				t.array = append(t.array, cur.value)
				cur.used, cur.dead = false, false
				found = true
				break
			}
			if cur.next == 0 {
				break
			}
			ci += int(cur.next)
			cur = &t.hashNodes[ci]
		}
		if !found {
			return
		}
	}
}

// Resize rebuilds both parts to the requested sizes, reinserting every live
// entry (§4.3 `resize(t, narray, nhash)`).
func (t *Table) Resize(narray, nhash int) {
	oldArray := t.array
	oldLive := t.liveHashEntries()

	t.array = make([]Value, narray)
	for i := range t.array {
		t.array[i] = NilOf(NilEmptySlot)
	}
	for i := 0; i < narray && i < len(oldArray); i++ {
		t.array[i] = oldArray[i]
	}

	t.resizeHash(npot(nhash))
	for i := narray; i < len(oldArray); i++ {
		if !IsNil(oldArray[i]) {
			t.setHash(Int(i+1), oldArray[i])
		}
	}
	for _, n := range oldLive {
		if i, ok := arrayIndex(n.key); ok && i <= narray {
			t.array[i-1] = n.value
			continue
		}
		t.setHash(n.key, n.value)
	}
}

// Length implements the boundary operator of §3/§8: any n with t[n] non-nil
// and t[n+1] nil.
func (t *Table) Length() int64 {
	n := len(t.array)
	for n > 0 && IsNil(t.array[n-1]) {
		n--
	}
	if n == len(t.array) && t.hashSize > 0 {
		// The array is full; the boundary may continue into the hash part.
		// Binary search an upper bound where t[j] is nil, per real Lua's
		// unbound_search, then bisect.
		i, j := int64(n), int64(n)+1
		for !IsNil(t.Get(Int(j))) {
			i = j
			if j > (1<<62)/2 {
				for k := int64(1); !IsNil(t.Get(Int(k))); k++ {
					i = k
				}
				return i
			}
			j *= 2
		}
		for j-i > 1 {
			m := (i + j) / 2
			if IsNil(t.Get(Int(m))) {
				j = m
			} else {
				i = m
			}
		}
		return i
	}
	return int64(n)
}

// Next implements §4.3 `next(t, k)`: array part ascending, then hash part in
// slot order. Passing NilOf(NilStandard) (or Nil) starts iteration.
func (t *Table) Next(k Value) (Value, Value, bool) {
	startArray := 0
	if !IsNil(k) {
		k = normalizeKey(k)
		if i, ok := arrayIndex(k); ok && i <= len(t.array) {
			startArray = i
		} else {
			return t.nextHash(k)
		}
	}
	for i := startArray; i < len(t.array); i++ {
		if !IsNil(t.array[i]) {
			return Int(i + 1), t.array[i], true
		}
	}
	return t.nextHash(nil)
}

func (t *Table) nextHash(after Value) (Value, Value, bool) {
	start := 0
	if after != nil {
		idx := t.mainPosition(after)
		found := -1
		for ci := idx; ; {
			n := &t.hashNodes[ci]
			if (n.used || n.dead) && valuesRawEqual(n.key, after) {
				found = ci
				break
			}
			if n.next == 0 {
				break
			}
			ci += int(n.next)
		}
		if found < 0 {
			return nil, nil, false
		}
		start = found + 1
	}
	for i := start; i < t.hashSize; i++ {
		n := &t.hashNodes[i]
		if n.used && !n.dead {
			return n.key, n.value, true
		}
	}
	return nil, nil, false
}

// --- fast metamethod cache (§4.3 / GLOSSARY "Fast metamethod") ---

func (t *Table) tmAbsent(bit uint8) bool { return t.absentTM&bit != 0 }
func (t *Table) setTMAbsent(bit uint8)   { t.absentTM |= bit }
