package buffer

// Buffer hosts multiple unrelated byte sequences (segments) in a single growing slice, so the
// request line and headers, which may come split across multiple reads, can be collected
// without allocating per each of them. The total size is limited.
//
// Segments returned by Commit stay valid until Reset, even if the buffer grows.
type Buffer struct {
	data  []byte
	start int
	limit int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		data:  make([]byte, 0, initialSize),
		limit: maxSize,
	}
}

// Append writes into the current segment. If the limit would be exceeded, nothing is written
// and false is returned.
func (b *Buffer) Append(p []byte) (ok bool) {
	if len(b.data)+len(p) > b.limit {
		return false
	}

	b.data = append(b.data, p...)
	return true
}

func (b *Buffer) AppendByte(c byte) (ok bool) {
	if len(b.data) >= b.limit {
		return false
	}

	b.data = append(b.data, c)
	return true
}

// Len is the length of the current segment.
func (b *Buffer) Len() int {
	return len(b.data) - b.start
}

// TrimTail cuts up to n last bytes of the current segment.
func (b *Buffer) TrimTail(n int) {
	b.data = b.data[:len(b.data)-min(n, b.Len())]
}

// Peek returns the current segment without completing it.
func (b *Buffer) Peek() []byte {
	return b.data[b.start:]
}

// Drop discards the current segment.
func (b *Buffer) Drop() {
	b.data = b.data[:b.start]
}

// Commit completes the current segment and returns it.
func (b *Buffer) Commit() []byte {
	segment := b.data[b.start:]
	b.start = len(b.data)

	return segment
}

// Reset forgets all the segments, so the memory can be reused.
func (b *Buffer) Reset() {
	b.start = 0
	b.data = b.data[:0]
}
