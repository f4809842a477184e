// This file implements the sequence-ordering buffer sitting between
// the wire and the payload depacketizers.

package rtp

import (
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	// defaultJitterWindow bounds the number of out-of-order packets
	// held while waiting for a gap to fill.
	defaultJitterWindow = 32

	// defaultJitterTimeout bounds how long a gap blocks delivery
	// before the missing packets are abandoned.
	defaultJitterTimeout = 100 * time.Millisecond
)

// JitterStats is a snapshot of the buffer's counters.
type JitterStats struct {
	Delivered uint64 // packets released in order
	Dropped   uint64 // duplicates and late arrivals
	Skipped   uint64 // sequence numbers abandoned on gap timeout
	Held      int    // packets currently waiting on a gap
}

// JitterBuffer releases RTP packets in sequence-number order.
//
// Packets arriving in order pass straight through. A packet ahead of
// the expected sequence number is held until the gap fills, the hold
// window overflows, or the gap outlives the timeout; the latter two
// abandon the missing numbers and resume from the earliest held
// packet. Timeouts are evaluated on packet arrival, so a terminal gap
// is only flushed by Flush.
type JitterBuffer struct {
	mu      sync.Mutex
	window  int
	timeout time.Duration
	time    TimeProvider

	started   bool
	next      uint16 // next expected sequence number
	held      map[uint16]*rtp.Packet
	blocked   bool
	blockedAt time.Time // when the current gap started blocking

	delivered uint64
	dropped   uint64
	skipped   uint64
}

// NewJitterBuffer creates a buffer with the given hold window and gap
// timeout. Zero values select the defaults; a nil time provider
// selects the real clock.
func NewJitterBuffer(window int, timeout time.Duration, tp TimeProvider) *JitterBuffer {
	if window <= 0 {
		window = defaultJitterWindow
	}
	if timeout <= 0 {
		timeout = defaultJitterTimeout
	}
	if tp == nil {
		tp = DefaultTimeProvider{}
	}

	return &JitterBuffer{
		window:  window,
		timeout: timeout,
		time:    tp,
		held:    make(map[uint16]*rtp.Packet),
	}
}

// Add offers one packet to the buffer and returns the packets now
// deliverable, in sequence order. The returned slice is often empty
// and shares no state with the buffer.
func (jb *JitterBuffer) Add(p *rtp.Packet) []*rtp.Packet {
	if p == nil {
		return nil
	}

	jb.mu.Lock()
	defer jb.mu.Unlock()

	if !jb.started {
		jb.started = true
		jb.next = p.SequenceNumber + 1
		jb.delivered++
		return []*rtp.Packet{p}
	}

	d := int16(p.SequenceNumber - jb.next)
	switch {
	case d < 0:
		// Already delivered or abandoned.
		jb.dropped++
		return nil

	case d == 0:
		jb.next++
		jb.delivered++
		return jb.drain([]*rtp.Packet{p})
	}

	if _, dup := jb.held[p.SequenceNumber]; dup {
		jb.dropped++
		return nil
	}
	jb.held[p.SequenceNumber] = p

	if !jb.blocked {
		jb.blocked = true
		jb.blockedAt = jb.time.Now()
		return nil
	}

	if len(jb.held) >= jb.window || jb.time.Since(jb.blockedAt) >= jb.timeout {
		return jb.skip()
	}
	return nil
}

// Flush abandons every outstanding gap and returns all held packets in
// sequence order.
func (jb *JitterBuffer) Flush() []*rtp.Packet {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	var out []*rtp.Packet
	for len(jb.held) > 0 {
		out = append(out, jb.skip()...)
	}
	return out
}

// Stats returns a snapshot of the buffer's counters.
func (jb *JitterBuffer) Stats() JitterStats {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	return JitterStats{
		Delivered: jb.delivered,
		Dropped:   jb.dropped,
		Skipped:   jb.skipped,
		Held:      len(jb.held),
	}
}

// drain appends the consecutive run of held packets starting at next
// and refreshes the gap state for whatever remains held.
func (jb *JitterBuffer) drain(out []*rtp.Packet) []*rtp.Packet {
	for {
		p, ok := jb.held[jb.next]
		if !ok {
			break
		}
		delete(jb.held, jb.next)
		jb.next++
		jb.delivered++
		out = append(out, p)
	}

	if len(jb.held) == 0 {
		jb.blocked = false
	} else {
		jb.blocked = true
		jb.blockedAt = jb.time.Now()
	}
	return out
}

// skip abandons the current gap: delivery resumes from the earliest
// held sequence number.
func (jb *JitterBuffer) skip() []*rtp.Packet {
	var (
		first = true
		best  uint16
		bestD int16
	)
	for seq := range jb.held {
		d := int16(seq - jb.next)
		if first || d < bestD {
			best, bestD = seq, d
			first = false
		}
	}
	if first {
		jb.blocked = false
		return nil
	}

	lost := uint16(best - jb.next)
	jb.skipped += uint64(lost)
	jb.next = best

	logrus.WithFields(logrus.Fields{
		"function":   "JitterBuffer.skip",
		"lost_count": lost,
		"resume_seq": best,
	}).Debug("Abandoned sequence gap")

	return jb.drain(nil)
}
