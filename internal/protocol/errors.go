package protocol

import (
	"errors"
	"fmt"
)

// Transport failures. The poller treats both as "server offline".
var (
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrConnectionRefused = errors.New("connection refused")
)

// Parse failures.
var (
	ErrMalformedVarInt = errors.New("malformed varint")
	// ErrVarIntTruncated is returned when the buffer ends inside a VarInt.
	// It wraps ErrMalformedVarInt; framing code uses it to wait for more data.
	ErrVarIntTruncated       = fmt.Errorf("%w: unexpected end of buffer", ErrMalformedVarInt)
	ErrUnexpectedPacketID    = errors.New("unexpected packet id")
	ErrTruncatedResponse     = errors.New("truncated response")
	ErrInvalidChallengeToken = errors.New("invalid challenge token")
	ErrJSONDecode            = errors.New("json decode error")
)
