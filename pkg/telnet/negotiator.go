package telnet

import "io"

// Negotiator strips telnet IAC command sequences out of inbound buffers and
// acknowledges option negotiations so they never reach command parsing as
// garbage text. Every option offer/request is blindly accepted by mirroring
// the command (WILL->DO, WONT->DONT, DO->WILL, DONT->WONT); the server has
// no option-specific behavior beyond NAWS window-size reports.
//
// A sequence split across two socket reads is not reassembled: a truncated
// trailing sequence is consumed minimally (1 or 2 bytes) so the next buffer
// parses cleanly, at the cost of dropping the tail of the split sequence.
type Negotiator struct {
	peer io.Writer

	// OnResize, when non-nil, is called with the width and height from a
	// NAWS subnegotiation report.
	OnResize func(width, height int)
}

// NewNegotiator creates a negotiator that writes acknowledgments to peer.
func NewNegotiator(peer io.Writer) *Negotiator {
	return &Negotiator{peer: peer}
}

// Filter scans data for IAC sequences, replies to negotiations, and returns
// the remaining plain text along with whether any telnet command bytes were
// present. Callers use sawCommand to decide whether a buffer that filtered
// down to nothing was protocol chatter rather than an empty line.
func (n *Negotiator) Filter(data []byte) (text []byte, sawCommand bool) {
	text = make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		if data[i] != IAC {
			text = append(text, data[i])
			i++
			continue
		}
		sawCommand = true

		if i+1 >= len(data) {
			// Lone IAC at end of buffer; consume it and move on.
			i++
			break
		}
		cmd := data[i+1]

		switch {
		case isNegotiation(cmd):
			if i+2 >= len(data) {
				// Truncated negotiation; consume what we have.
				i += 2
				break
			}
			opt := data[i+2]
			if n.peer != nil {
				n.peer.Write([]byte{IAC, mirror(cmd), opt})
			}
			i += 3

		case cmd == SB:
			end := n.subnegotiate(data[i:])
			i += end

		default:
			// Any other command is a self-contained 2-byte sequence.
			i += 2
		}
	}
	return text, sawCommand
}

// subnegotiate handles a buffer starting with IAC SB. It returns the number
// of bytes consumed; an unterminated block consumes the rest of the buffer.
func (n *Negotiator) subnegotiate(data []byte) int {
	// data[0]=IAC data[1]=SB data[2]=option payload... IAC SE
	if len(data) < 3 {
		return len(data)
	}
	opt := data[2]
	for j := 3; j+1 < len(data); j++ {
		if data[j] == IAC && data[j+1] == SE {
			if opt == OptNAWS {
				n.handleNAWS(data[3:j])
			}
			return j + 2
		}
	}
	return len(data)
}

// handleNAWS decodes a window-size payload: two 16-bit big-endian values.
func (n *Negotiator) handleNAWS(payload []byte) {
	if len(payload) < 4 || n.OnResize == nil {
		return
	}
	width := int(payload[0])<<8 | int(payload[1])
	height := int(payload[2])<<8 | int(payload[3])
	n.OnResize(width, height)
}
