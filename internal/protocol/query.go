package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// KeyValue is one server-reported field of a full stat response.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// QueryResponse is the decoded full stat payload. Fields keep the order the
// server sent them in.
type QueryResponse struct {
	Fields  []KeyValue `json:"fields"`
	Players []string   `json:"players"`
}

// Get returns the value of the first field named key.
func (r *QueryResponse) Get(key string) (string, bool) {
	for _, kv := range r.Fields {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Well-known full stat keys.
const (
	QueryKeyHostname   = "hostname"
	QueryKeyGameType   = "gametype"
	QueryKeyGameID     = "game_id"
	QueryKeyVersion    = "version"
	QueryKeyPlugins    = "plugins"
	QueryKeyMap        = "map"
	QueryKeyNumPlayers = "numplayers"
	QueryKeyMaxPlayers = "maxplayers"
	QueryKeyHostPort   = "hostport"
	QueryKeyHostIP     = "hostip"
)

// MaskSessionID applies the protocol's session id mask.
func MaskSessionID(id int32) int32 {
	return id & SessionIDMask
}

// BuildQueryHandshake returns the 7-byte handshake datagram.
// Format: [magic:2][type=0x09][session:4 BE]
func BuildQueryHandshake(sessionID int32) []byte {
	buf := make([]byte, 0, 7)
	buf = binary.BigEndian.AppendUint16(buf, QueryMagic)
	buf = append(buf, QueryTypeHandshake)
	buf = binary.BigEndian.AppendUint32(buf, uint32(sessionID))
	return buf
}

// BuildStatRequest returns the 15-byte full stat request datagram. The four
// trailing zero bytes select full mode instead of basic.
// Format: [magic:2][type=0x00][session:4 BE][token:4 BE][pad:4]
func BuildStatRequest(sessionID, token int32) []byte {
	buf := make([]byte, 0, 15)
	buf = binary.BigEndian.AppendUint16(buf, QueryMagic)
	buf = append(buf, QueryTypeStat)
	buf = binary.BigEndian.AppendUint32(buf, uint32(sessionID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(token))
	buf = append(buf, 0x00, 0x00, 0x00, 0x00)
	return buf
}

// ParseHandshakeResponse decodes a handshake reply and returns the session
// id to use from now on together with the challenge token.
func ParseHandshakeResponse(buf []byte) (sessionID, token int32, err error) {
	r := newByteCursor(skipMagic(buf))

	typ, err := r.byte()
	if err != nil {
		return 0, 0, fmt.Errorf("read handshake type: %w", err)
	}
	if typ != QueryTypeHandshake {
		return 0, 0, fmt.Errorf("%w: handshake type 0x%02X", ErrUnexpectedPacketID, typ)
	}

	sid, err := r.uint32()
	if err != nil {
		return 0, 0, fmt.Errorf("read handshake session id: %w", err)
	}

	text := r.cstringOrRest()
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil || v < -1<<31 || v > 1<<32-1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidChallengeToken, text)
	}

	return int32(sid), int32(uint32(v)), nil
}

// ParseStatResponse decodes a full stat reply.
func ParseStatResponse(buf []byte) (*QueryResponse, error) {
	body := skipMagic(buf)
	r := newByteCursor(body)

	typ, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("read stat type: %w", err)
	}
	if typ != QueryTypeStat {
		return nil, fmt.Errorf("%w: stat type 0x%02X", ErrUnexpectedPacketID, typ)
	}
	if err := r.skip(statHeaderSize - 1 + statPaddingSize); err != nil {
		return nil, fmt.Errorf("skip stat header: %w", err)
	}

	resp := &QueryResponse{
		Fields:  make([]KeyValue, 0, 12),
		Players: make([]string, 0),
	}

	for {
		key, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("read stat key: %w", err)
		}
		if key == "" {
			break
		}
		value, err := r.cstring()
		if err != nil {
			return nil, fmt.Errorf("read value of %q: %w", key, err)
		}
		resp.Fields = append(resp.Fields, KeyValue{Key: key, Value: value})
	}

	if idx := bytes.Index(body[r.pos:], playerSectionMarker); idx >= 0 {
		r.pos += idx + len(playerSectionMarker)
	}

	for r.remaining() > 0 {
		name := r.cstringOrRest()
		if name != "" {
			resp.Players = append(resp.Players, name)
		}
	}

	return resp, nil
}

func skipMagic(buf []byte) []byte {
	if len(buf) >= 2 && binary.BigEndian.Uint16(buf) == QueryMagic {
		return buf[2:]
	}
	return buf
}

// byteCursor is a bounds-checked reader over a datagram.
type byteCursor struct {
	buf []byte
	pos int
}

func newByteCursor(buf []byte) *byteCursor {
	return &byteCursor{buf: buf}
}

func (c *byteCursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *byteCursor) byte() (byte, error) {
	if c.remaining() < 1 {
		return 0, fmt.Errorf("%w: need 1 byte at offset %d", ErrTruncatedResponse, c.pos)
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *byteCursor) uint32() (uint32, error) {
	if c.remaining() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes at offset %d, have %d",
			ErrTruncatedResponse, c.pos, c.remaining())
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *byteCursor) skip(n int) error {
	if c.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncatedResponse, n, c.pos, c.remaining())
	}
	c.pos += n
	return nil
}

// cstring reads a NUL-terminated string. A missing terminator is an error.
func (c *byteCursor) cstring() (string, error) {
	idx := bytes.IndexByte(c.buf[c.pos:], 0x00)
	if idx < 0 {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrTruncatedResponse, c.pos)
	}
	s := string(c.buf[c.pos : c.pos+idx])
	c.pos += idx + 1
	return s, nil
}

// cstringOrRest reads up to the next NUL byte, or to the end of the buffer
// when there is none.
func (c *byteCursor) cstringOrRest() string {
	rest := c.buf[c.pos:]
	idx := bytes.IndexByte(rest, 0x00)
	if idx < 0 {
		c.pos = len(c.buf)
		return string(rest)
	}
	c.pos += idx + 1
	return string(rest[:idx])
}
