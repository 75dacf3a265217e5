package runtime

// shortStringMax is the length threshold separating the two string variants
// (§3 "String"): at or under this many bytes, strings are interned; above
// it, they are not, and their hash is computed lazily.
const shortStringMax = 40

// hashSampleStride is not read by hashBytes, which derives its sampling
// stride from the string length to cap hashing at about 32 bytes (§4.2).
const hashSampleStride = 1

// StringObj is the single heap representation backing both string variants.
// Short strings are interned (one StringObj per distinct byte sequence,
// reference-equal); long strings are allocated fresh each time and compare
// by content.
type StringObj struct {
	gcHeader
	short  bool
	s      string
	hash   uint32
	hashed bool // long strings compute their hash lazily, on first use as a key
	hnext  *StringObj
}

func (s *StringObj) Type() Type      { return TypeString }
func (*StringObj) Truthy() bool      { return true }
func (s *StringObj) String() string  { return s.s }
func (s *StringObj) Bytes() []byte   { return []byte(s.s) }
func (s *StringObj) Len() int        { return len(s.s) }
func (s *StringObj) IsShort() bool   { return s.short }

// Hash returns the string's hash, computing and caching it for long strings
// on first call (§3 "a string's hash never changes after creation (short
// strings) or after first computation (long strings)").
func (s *StringObj) Hash(seed uint32) uint32 {
	if s.short {
		return s.hash
	}
	if !s.hashed {
		s.hash = hashBytes(s.s, seed)
		s.hashed = true
	}
	return s.hash
}

// StringsEqual implements the equality rule of §3: short strings compare by
// pointer identity (interning guarantees one instance per distinct content);
// long strings compare length then memcmp.
func StringsEqual(a, b *StringObj) bool {
	if a == b {
		return true
	}
	if a.short && b.short {
		return false // distinct interned instances are necessarily distinct content
	}
	return a.s == b.s
}

// hashBytes is the string-table hash function: a seeded shift-add-xor hash
// that samples every (len/32+1)-th byte, walking from the end, so at most
// about 32 bytes of any string are hashed. Strings shorter than 32 bytes are
// hashed in full; longer ones, including short strings of 32..40 bytes, are
// sampled.
func hashBytes(s string, seed uint32) uint32 {
	h := seed ^ uint32(len(s))
	step := (len(s) >> 5) + 1
	for i := len(s); i >= step; i -= step {
		h = h ^ ((h << 5) + (h >> 2) + uint32(s[i-1]))
	}
	return h
}

// stringTable is the global short-string intern set (§4.2): a closed hash
// set chained through each StringObj's hnext pointer, resized by load
// factor. One instance lives on GlobalState.
type stringTable struct {
	g      *GlobalState // owner, for registering freshly allocated StringObjs with the collector
	seed   uint32
	hash   []*StringObj // buckets; collisions chain via hnext
	nuse   int
	cache  [stringCacheRows][stringCacheCols]*StringObj // direct-mapped accelerator
}

const (
	stringCacheRows = 53
	stringCacheCols = 2
	minStringTable  = 8
)

func newStringTable(seed uint32) *stringTable {
	return &stringTable{seed: seed, hash: make([]*StringObj, minStringTable)}
}

// newString interns (for short strings) or freshly allocates (for long
// strings) a StringObj for s.
func (st *stringTable) newString(s string) *StringObj {
	if len(s) > shortStringMax {
		obj := &StringObj{s: s}
		st.g.gc.register(obj)
		return obj
	}

	h := hashBytes(s, st.seed)
	row := &st.cache[h%stringCacheRows]
	for _, c := range row {
		if c != nil && c.s == s {
			return c
		}
	}

	idx := h & uint32(len(st.hash)-1)
	for cur := st.hash[idx]; cur != nil; cur = cur.hnext {
		if cur.s == s {
			st.cacheInsert(row, cur)
			return cur
		}
	}

	obj := &StringObj{short: true, s: s, hash: h, hashed: true}
	obj.hnext = st.hash[idx]
	st.hash[idx] = obj
	st.nuse++
	st.cacheInsert(row, obj)
	st.g.gc.register(obj)

	if st.nuse > len(st.hash) {
		st.resize(len(st.hash) * 2)
	}
	return obj
}

func (st *stringTable) cacheInsert(row *[stringCacheCols]*StringObj, s *StringObj) {
	copy(row[1:], row[:stringCacheCols-1])
	row[0] = s
}

// remove unlinks a short string from the intern set, halving the bucket
// array when it becomes sparse. The collector's sweep does not call it, so
// an interned string stays in the table after the sweep unlinks it from
// gc.all.
func (st *stringTable) remove(s *StringObj) {
	idx := s.hash & uint32(len(st.hash)-1)
	prev := (*StringObj)(nil)
	for cur := st.hash[idx]; cur != nil; cur = cur.hnext {
		if cur == s {
			if prev == nil {
				st.hash[idx] = cur.hnext
			} else {
				prev.hnext = cur.hnext
			}
			st.nuse--
			break
		}
		prev = cur
	}
	if st.nuse < len(st.hash)/4 && len(st.hash) > minStringTable*2 {
		st.resize(len(st.hash) / 2)
	}
}

func (st *stringTable) resize(newSize int) {
	if newSize < minStringTable {
		newSize = minStringTable
	}
	nt := make([]*StringObj, newSize)
	for _, head := range st.hash {
		for cur := head; cur != nil; {
			next := cur.hnext
			idx := cur.hash & uint32(newSize-1)
			cur.hnext = nt[idx]
			nt[idx] = cur
			cur = next
		}
	}
	st.hash = nt
}

// all returns every interned short string.
func (st *stringTable) all() []*StringObj {
	out := make([]*StringObj, 0, st.nuse)
	for _, head := range st.hash {
		for cur := head; cur != nil; cur = cur.hnext {
			out = append(out, cur)
		}
	}
	return out
}
