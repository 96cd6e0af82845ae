package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// PingResponse is the decoded status payload of a server.
type PingResponse struct {
	VersionName     string         `json:"version_name"`
	ProtocolVersion int            `json:"protocol_version"`
	PlayersOnline   int            `json:"players_online"`
	PlayersMax      int            `json:"players_max"`
	Description     string         `json:"description"`
	Favicon         string         `json:"favicon,omitempty"`
	Sample          []PlayerSample `json:"sample,omitempty"`
}

// PlayerSample is one entry of the optional player sample in a status response.
type PlayerSample struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// statusJSON mirrors the JSON document carried by the status response packet.
type statusJSON struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int            `json:"max"`
		Online int            `json:"online"`
		Sample []PlayerSample `json:"sample"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
	Favicon     string          `json:"favicon"`
}

// BuildHandshake returns the length-prefixed handshake packet selecting the
// status state.
// Format: [len][id=0x00][protocol=47][host len][host][port:2 BE][next=1]
func BuildHandshake(host string, port uint16) []byte {
	body := make([]byte, 0, 16+len(host))
	body = appendVarInt(body, uint32(PktHandshake))
	body = appendVarInt(body, ProtocolVersion)
	body = appendVarInt(body, uint32(len(host)))
	body = append(body, host...)
	body = binary.BigEndian.AppendUint16(body, port)
	body = appendVarInt(body, NextStateStatus)
	return frame(body)
}

// BuildStatusRequest returns the length-prefixed, empty status request packet.
func BuildStatusRequest() []byte {
	return frame(appendVarInt(nil, uint32(PktStatusRequest)))
}

func frame(body []byte) []byte {
	out := make([]byte, 0, VarIntSize(uint32(len(body)))+len(body))
	out = appendVarInt(out, uint32(len(body)))
	return append(out, body...)
}

// ReadStatusResponse tries to extract one status response frame from the
// accumulated bytes in buf. complete is false when buf does not yet hold the
// whole frame; that is not an error and the caller should read more data.
// On success body holds the raw JSON text.
func ReadStatusResponse(buf []byte) (body []byte, complete bool, err error) {
	length, n, err := DecodeVarInt(buf, 0)
	if errors.Is(err, ErrVarIntTruncated) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read packet length: %w", err)
	}
	if length > MaxStatusPacketSize {
		return nil, false, fmt.Errorf("packet too large: %d bytes (max %d)", length, MaxStatusPacketSize)
	}
	if uint32(len(buf)-n) < length {
		return nil, false, nil
	}

	packet := buf[n : n+int(length)]

	id, idLen, err := DecodeVarInt(packet, 0)
	if err != nil {
		return nil, false, fmt.Errorf("read packet id: %w", err)
	}
	if int32(id) != PktStatusResponse {
		return nil, false, fmt.Errorf("%w: 0x%02X", ErrUnexpectedPacketID, id)
	}

	jsonLen, lenLen, err := DecodeVarInt(packet, idLen)
	if err != nil {
		return nil, false, fmt.Errorf("read json length: %w", err)
	}
	start := idLen + lenLen
	if uint32(len(packet)-start) < jsonLen {
		return nil, false, fmt.Errorf("%w: json body declares %d bytes, packet holds %d",
			ErrTruncatedResponse, jsonLen, len(packet)-start)
	}

	return packet[start : start+int(jsonLen)], true, nil
}

// ParsePingResponse decodes the JSON text of a status response.
func ParsePingResponse(body []byte) (*PingResponse, error) {
	var raw statusJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJSONDecode, err)
	}

	motd, err := FlattenDescription(raw.Description)
	if err != nil {
		return nil, err
	}

	return &PingResponse{
		VersionName:     raw.Version.Name,
		ProtocolVersion: raw.Version.Protocol,
		PlayersOnline:   raw.Players.Online,
		PlayersMax:      raw.Players.Max,
		Description:     motd,
		Favicon:         raw.Favicon,
		Sample:          raw.Players.Sample,
	}, nil
}
