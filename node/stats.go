package node

import "sync/atomic"

// Stats holds the node's monotonic message counters. Each field is a
// separate atomic so the periodic STATS report and the dispatch loop never
// contend on a shared lock for something that is read far more often than
// it is written, matching device/device.go's habit of putting hot counters
// in atomics rather than under the coarse state mutex.
type Stats struct {
	messagesSent      atomic.Uint64
	messagesReceived  atomic.Uint64
	messagesForwarded atomic.Uint64
	unknownTypes      atomic.Uint64
	decodeErrors      atomic.Uint64
}

func (s *Stats) incSent()      { s.messagesSent.Add(1) }
func (s *Stats) incReceived()  { s.messagesReceived.Add(1) }
func (s *Stats) incForwarded() { s.messagesForwarded.Add(1) }
func (s *Stats) incUnknown()   { s.unknownTypes.Add(1) }
func (s *Stats) incDecodeErr() { s.decodeErrors.Add(1) }

// Counters is a point-in-time snapshot safe to serialize into a STATS
// report. uptimeSeconds is derived from the node's start time rather than
// stored, which trivially satisfies "monotonic, never decrement."
type Counters struct {
	MessagesSent      uint64
	MessagesReceived  uint64
	MessagesForwarded uint64
	UnknownTypes      uint64
	DecodeErrors      uint64
	UptimeSeconds     uint64
}

func (s *Stats) snapshot(uptimeSeconds uint64) Counters {
	return Counters{
		MessagesSent:      s.messagesSent.Load(),
		MessagesReceived:  s.messagesReceived.Load(),
		MessagesForwarded: s.messagesForwarded.Load(),
		UnknownTypes:      s.unknownTypes.Load(),
		DecodeErrors:      s.decodeErrors.Load(),
		UptimeSeconds:     uptimeSeconds,
	}
}
