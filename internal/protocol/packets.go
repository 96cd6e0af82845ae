// Package protocol implements the wire formats spoken by Pulse: the
// length-prefixed TCP status protocol ("ping") and the magic-framed UDP
// query protocol. It only builds and parses byte slices; sockets live in
// the network package.
package protocol

// Status (TCP) protocol constants.
const (
	// ProtocolVersion is the handshake protocol version sent to the server (1.8).
	ProtocolVersion = 47

	PktHandshake      int32 = 0x00 // Serverbound handshake
	PktStatusRequest  int32 = 0x00 // Serverbound status request
	PktStatusResponse int32 = 0x00 // Clientbound status response (JSON)

	// NextStateStatus selects the status state in the handshake.
	NextStateStatus = 1
)

// MaxStatusPacketSize bounds the declared length of a status response frame.
const MaxStatusPacketSize = 1 << 21

// Query (UDP) protocol constants.
const (
	QueryMagic uint16 = 0xFEFD

	QueryTypeHandshake byte = 0x09
	QueryTypeStat      byte = 0x00

	// SessionIDMask keeps only the low nibble of every session id byte.
	SessionIDMask int32 = 0x0F0F0F0F

	// statHeaderSize covers the type byte and the 4-byte session id.
	statHeaderSize = 5
	// statPaddingSize is the "splitnum" padding that precedes the key/value section.
	statPaddingSize = 11
)

// playerSectionMarker separates the key/value section from the player names.
var playerSectionMarker = []byte{0x01, 'p', 'l', 'a', 'y', 'e', 'r', '_', 0x00, 0x00}

// MaxDatagramSize is the receive buffer size for query responses.
const MaxDatagramSize = 65535
