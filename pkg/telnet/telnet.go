package telnet

// Telnet protocol constants (RFC 854/855).
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	GA   byte = 249 // Go Ahead
	NOP  byte = 241
	SE   byte = 240 // Subnegotiation End
)

// Telnet option codes the server recognizes.
const (
	OptEcho       byte = 1
	OptSuppressGA byte = 3
	OptTermType   byte = 24
	OptNAWS       byte = 31 // Negotiate About Window Size
)

// mirror maps a received negotiation command to the acknowledgment we send
// back: WILL->DO, WONT->DONT, DO->WILL, DONT->WONT.
func mirror(cmd byte) byte {
	switch cmd {
	case WILL:
		return DO
	case WONT:
		return DONT
	case DO:
		return WILL
	case DONT:
		return WONT
	}
	return 0
}

// isNegotiation reports whether cmd begins a 3-byte IAC sequence.
func isNegotiation(cmd byte) bool {
	return cmd == WILL || cmd == WONT || cmd == DO || cmd == DONT
}
