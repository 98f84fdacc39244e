package engine

import "encoding/binary"

// ByteStream is an append-only HMAC byte buffer read 8 bytes at a time.
// It starts with HMAC(serverSeed, stain) and grows by one 32-byte block,
// HMAC(serverSeed, stain+decimal(i)), whenever a read at loop index i would
// run past the end. Not safe for concurrent use.
type ByteStream struct {
	seeds      Seeds
	buffer     []byte
	cursor     int
	extensions []int
}

const streamWordSize = 8

// NewByteStream creates a stream seeded with the base digest.
func NewByteStream(seeds Seeds) *ByteStream {
	s := &ByteStream{seeds: seeds}
	s.buffer = append(s.buffer, DigestBytes(seeds.Server, seeds.Stain)...)
	return s
}

// Uint64At reads the next big-endian word on behalf of loop index i,
// extending the buffer first when fewer than 8 unread bytes remain.
func (s *ByteStream) Uint64At(i int) uint64 {
	for s.cursor+streamWordSize > len(s.buffer) {
		s.extend(i)
	}
	v := binary.BigEndian.Uint64(s.buffer[s.cursor : s.cursor+streamWordSize])
	s.cursor += streamWordSize
	return v
}

func (s *ByteStream) extend(i int) {
	s.buffer = append(s.buffer, IndexedDigestBytes(s.seeds.Server, s.seeds.Stain, i)...)
	s.extensions = append(s.extensions, i)
}

// Len is the number of bytes generated so far.
func (s *ByteStream) Len() int { return len(s.buffer) }

// Cursor is the offset of the next unread byte.
func (s *ByteStream) Cursor() int { return s.cursor }

// Extensions lists the loop indexes that triggered a buffer extension.
func (s *ByteStream) Extensions() []int {
	out := make([]int, len(s.extensions))
	copy(out, s.extensions)
	return out
}
