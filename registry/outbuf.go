// File: registry/outbuf.go
// Package registry: ordered outbound byte queue with partial-write state.
// License: Apache-2.0

package registry

import "github.com/eapache/queue"

// outbuf is an ordered outbound byte queue. Appends go to the tail, the
// dispatch loop drains from the head, possibly a few bytes at a time.
type outbuf struct {
	chunks *queue.Queue // of []byte
	off    int          // consumed bytes of the head chunk
	size   int          // total unwritten bytes
}

func newOutbuf() *outbuf {
	return &outbuf{chunks: queue.New()}
}

// append copies p onto the tail of the queue.
func (b *outbuf) append(p []byte) {
	if len(p) == 0 {
		return
	}
	c := make([]byte, len(p))
	copy(c, p)
	b.chunks.Add(c)
	b.size += len(c)
}

// peek returns the unwritten remainder of the head chunk.
func (b *outbuf) peek() []byte {
	if b.size == 0 {
		return nil
	}
	head := b.chunks.Peek().([]byte)
	return head[b.off:]
}

// advance consumes n written bytes from the head of the queue.
func (b *outbuf) advance(n int) {
	for n > 0 {
		head := b.chunks.Peek().([]byte)
		rest := len(head) - b.off
		if n < rest {
			b.off += n
			b.size -= n
			return
		}
		b.chunks.Remove()
		b.off = 0
		b.size -= rest
		n -= rest
	}
}

// reset drops all unwritten bytes.
func (b *outbuf) reset() {
	b.chunks = queue.New()
	b.off = 0
	b.size = 0
}
