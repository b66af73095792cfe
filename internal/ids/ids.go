// Package ids implements the engine's content-addressed identity types:
// stable hashes for documents, series, tasks, content, and the
// fingerprints that drive incremental rebuilds. Every hash in the
// engine goes through a single canonical, length-prefixed encoding so
// concatenation of variable-length fields is never ambiguous.
package ids

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Size is the width in bytes of every identifier and fingerprint the
// engine produces.
const Size = 32

// Hash is a 256-bit content hash. The zero value is all zero bytes,
// not the hash of the empty input; internal/feed uses a zero DocId to
// mean "no source page".
type Hash [Size]byte

// String renders the hash as lowercase hex, matching the teacher's
// HashContent/HashString convention.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice, useful for sorting and for
// feeding a Hash into a further Builder as a sequence element.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Less orders two hashes by their raw bytes, the sort key used
// everywhere the engine needs a deterministic ordering over hashes
// (task lists, edge lists, content-hash sets folded into a
// fingerprint).
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

type (
	// DocId is the hash of a document's canonical source path.
	DocId Hash
	// SeriesId is the hash of a series directory path.
	SeriesId Hash
	// TaskId is the hash of a task kind plus its kind-specific key
	// fields. It never depends on content: two tasks that would
	// produce the same output always carry the same TaskId across
	// builds.
	TaskId Hash
	// ContentHash is the hash of a document's canonicalized content
	// (normalized header + body + the configuration bits that affect
	// rendering).
	ContentHash Hash
	// InputFingerprint summarizes everything a task's output depends
	// on: its own TaskId, its kind label, the config hash, and the
	// content hashes of everything it reads.
	InputFingerprint Hash
)

func (d DocId) String() string             { return Hash(d).String() }
func (s SeriesId) String() string          { return Hash(s).String() }
func (t TaskId) String() string            { return Hash(t).String() }
func (c ContentHash) String() string       { return Hash(c).String() }
func (f InputFingerprint) String() string  { return Hash(f).String() }
func (t TaskId) Less(o TaskId) bool        { return Hash(t).Less(Hash(o)) }
func (c ContentHash) Less(o ContentHash) bool { return Hash(c).Less(Hash(o)) }

// Builder accumulates a canonical, length-prefixed encoding of
// variable-length fields into a single blake3 hash, implementing the
// encoding rule `u64_le(len) || bytes` for every string and `[]byte`
// field, and `u64_le(count)` before every sequence.
//
// Builder is the one place in the engine that is allowed to call
// hasher.Write directly; every other package builds a Hash through it
// so the encoding discipline cannot drift between call sites.
type Builder struct {
	h *blake3.Hasher
}

// NewBuilder starts a fresh canonical hash, optionally seeded with a
// domain-separation tag (e.g. "stbl2.task.v1"). Pass an empty tag to
// start unseeded.
func NewBuilder(domainTag string) *Builder {
	b := &Builder{h: blake3.New()}
	if domainTag != "" {
		b.h.Write([]byte(domainTag))
	}
	return b
}

func lenPrefix(n int) [8]byte {
	var buf [8]byte
	v := uint64(n)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

// Str appends a length-prefixed string.
func (b *Builder) Str(s string) *Builder {
	p := lenPrefix(len(s))
	b.h.Write(p[:])
	b.h.Write([]byte(s))
	return b
}

// Bytes appends a length-prefixed byte slice.
func (b *Builder) Bytes(v []byte) *Builder {
	p := lenPrefix(len(v))
	b.h.Write(p[:])
	b.h.Write(v)
	return b
}

// Hash appends a fixed-width 32-byte hash verbatim; no length prefix
// is needed since its width never varies.
func (b *Builder) Hash(h Hash) *Builder {
	b.h.Write(h[:])
	return b
}

// U64 appends a little-endian uint64, e.g. for a width, a page
// number, or a sequence count not covered by StrSeq/HashSeq.
func (b *Builder) U64(v uint64) *Builder {
	buf := lenPrefix(int(v))
	b.h.Write(buf[:])
	return b
}

// StrSeq appends a count-prefixed sequence of length-prefixed
// strings.
func (b *Builder) StrSeq(values []string) *Builder {
	count := lenPrefix(len(values))
	b.h.Write(count[:])
	for _, v := range values {
		b.Str(v)
	}
	return b
}

// HashSeq appends a count-prefixed sequence of fixed-width hashes.
// Callers are responsible for sorting the sequence into the
// engine's canonical order (by hash bytes ascending, or by whatever
// stable key the caller documents) before calling this — Builder
// never sorts on the caller's behalf.
func (b *Builder) HashSeq(values []Hash) *Builder {
	count := lenPrefix(len(values))
	b.h.Write(count[:])
	for _, v := range values {
		b.h.Write(v[:])
	}
	return b
}

// Finish finalizes the hash.
func (b *Builder) Finish() Hash {
	var out Hash
	sum := b.h.Sum(nil)
	copy(out[:], sum)
	return out
}

// HashDoc computes a DocId from a document's canonical source path.
func HashDoc(sourcePath string) DocId {
	return DocId(NewBuilder("").Str(sourcePath).Finish())
}

// HashSeries computes a SeriesId from a series directory path.
func HashSeries(dirPath string) SeriesId {
	return SeriesId(NewBuilder("").Str(dirPath).Finish())
}

// HashBytes is a convenience wrapper for hashing a single blob with no
// domain tag, used for source-file content hashes (images, videos,
// assets) where there is nothing else to fold in.
func HashBytes(data []byte) Hash {
	sum := blake3.Sum256(data)
	return Hash(sum)
}

// NewTaskId computes TaskId = H(kind_tag || canonical_fields), per
// spec §4.1. Callers pass exactly the fields that identify which
// output a task produces; never content.
func NewTaskId(kindTag string, fields ...string) TaskId {
	return TaskId(NewBuilder("").Str(kindTag).StrSeq(fields).Finish())
}

// NewFingerprint computes InputFingerprint = H("stbl2.task.v1" ||
// TaskId || kind_label || config_hash || content_hash_1 || … ||
// content_hash_N), per spec §4.1. Callers are responsible for sorting
// contentHashes into the engine's canonical order before calling this.
func NewFingerprint(taskId TaskId, kindLabel string, configHash Hash, contentHashes []Hash) InputFingerprint {
	b := NewBuilder("stbl2.task.v1").Hash(Hash(taskId)).Str(kindLabel).Hash(configHash)
	return InputFingerprint(b.HashSeq(contentHashes).Finish())
}
