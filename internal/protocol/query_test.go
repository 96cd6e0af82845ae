package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// statBody assembles a full stat reply without the leading magic.
func statBody(sessionID byte, fields [][2]string, marker bool, players ...string) []byte {
	buf := []byte{QueryTypeStat, 0x00, 0x00, 0x00, sessionID}
	buf = append(buf, []byte("splitnum\x00\x80\x00")...) // 11 bytes of padding
	for _, kv := range fields {
		buf = append(buf, kv[0]...)
		buf = append(buf, 0x00)
		buf = append(buf, kv[1]...)
		buf = append(buf, 0x00)
	}
	buf = append(buf, 0x00)
	if marker {
		buf = append(buf, playerSectionMarker...)
	}
	for _, p := range players {
		buf = append(buf, p...)
		buf = append(buf, 0x00)
	}
	buf = append(buf, 0x00)
	return buf
}

func TestBuildQueryHandshake(t *testing.T) {
	got := BuildQueryHandshake(0x01020304)
	want := []byte{0xFE, 0xFD, 0x09, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(got, want) {
		t.Errorf("BuildQueryHandshake = % X, want % X", got, want)
	}
}

func TestBuildStatRequest(t *testing.T) {
	got := BuildStatRequest(0x01020304, 9513307)
	want := []byte{
		0xFE, 0xFD, 0x00,
		0x01, 0x02, 0x03, 0x04,
		0x00, 0x91, 0x29, 0x5B,
		0x00, 0x00, 0x00, 0x00,
	}
	if len(got) != 15 {
		t.Fatalf("len = %d, want 15", len(got))
	}
	if !bytes.Equal(got, want) {
		t.Errorf("BuildStatRequest = % X, want % X", got, want)
	}
}

func TestMaskSessionID(t *testing.T) {
	if got := MaskSessionID(-1); got != 0x0F0F0F0F {
		t.Errorf("MaskSessionID(-1) = %#x", got)
	}
	if got := MaskSessionID(0x7A3B2C1D); got != 0x0A0B0C0D {
		t.Errorf("MaskSessionID = %#x, want 0x0A0B0C0D", got)
	}
}

func TestParseHandshakeResponse(t *testing.T) {
	tests := []struct {
		name      string
		buf       []byte
		sessionID int32
		token     int32
	}{
		{
			name:      "no_magic",
			buf:       []byte("\x09\x00\x00\x00\x07" + "9513307\x00"),
			sessionID: 7,
			token:     9513307,
		},
		{
			name:      "with_magic",
			buf:       []byte("\xFE\xFD\x09\x01\x02\x03\x04" + "42\x00"),
			sessionID: 0x01020304,
			token:     42,
		},
		{
			name:      "no_terminator",
			buf:       []byte("\x09\x00\x00\x00\x01" + "123"),
			sessionID: 1,
			token:     123,
		},
		{
			name:      "negative_token",
			buf:       []byte("\x09\x00\x00\x00\x01" + "-5\x00"),
			sessionID: 1,
			token:     -5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sid, token, err := ParseHandshakeResponse(tc.buf)
			if err != nil {
				t.Fatalf("ParseHandshakeResponse: %v", err)
			}
			if sid != tc.sessionID {
				t.Errorf("sessionID = %d, want %d", sid, tc.sessionID)
			}
			if token != tc.token {
				t.Errorf("token = %d, want %d", token, tc.token)
			}
		})
	}
}

func TestParseHandshakeResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrTruncatedResponse},
		{"wrong_type", []byte("\x00\x00\x00\x00\x01" + "1\x00"), ErrUnexpectedPacketID},
		{"short_session", []byte("\x09\x00\x00"), ErrTruncatedResponse},
		{"empty_token", []byte("\x09\x00\x00\x00\x01\x00"), ErrInvalidChallengeToken},
		{"non_numeric_token", []byte("\x09\x00\x00\x00\x01" + "abc\x00"), ErrInvalidChallengeToken},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseHandshakeResponse(tc.buf)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseStatResponse(t *testing.T) {
	buf := statBody(0x01,
		[][2]string{{"hostname", "A Server"}, {"map", "world"}},
		true, "Notch", "jeb_")

	resp, err := ParseStatResponse(buf)
	if err != nil {
		t.Fatalf("ParseStatResponse: %v", err)
	}

	if len(resp.Fields) != 2 {
		t.Fatalf("Fields = %+v, want 2 entries", resp.Fields)
	}
	if resp.Fields[0] != (KeyValue{"hostname", "A Server"}) || resp.Fields[1] != (KeyValue{"map", "world"}) {
		t.Errorf("Fields = %+v", resp.Fields)
	}
	if v, ok := resp.Get("map"); !ok || v != "world" {
		t.Errorf("Get(map) = %q, %v", v, ok)
	}
	if _, ok := resp.Get("gametype"); ok {
		t.Error("Get(gametype) found a missing key")
	}
	if len(resp.Players) != 2 || resp.Players[0] != "Notch" || resp.Players[1] != "jeb_" {
		t.Errorf("Players = %q, want [Notch jeb_]", resp.Players)
	}
}

func TestParseStatResponseWithMagic(t *testing.T) {
	buf := append([]byte{0xFE, 0xFD}, statBody(0x02, [][2]string{{"gametype", "SMP"}}, true, "Steve")...)

	resp, err := ParseStatResponse(buf)
	if err != nil {
		t.Fatalf("ParseStatResponse: %v", err)
	}
	if v, _ := resp.Get(QueryKeyGameType); v != "SMP" {
		t.Errorf("gametype = %q", v)
	}
	if len(resp.Players) != 1 || resp.Players[0] != "Steve" {
		t.Errorf("Players = %q", resp.Players)
	}
}

func TestParseStatResponseWithoutMarker(t *testing.T) {
	buf := statBody(0x01, [][2]string{{"numplayers", "1"}}, false, "Alex")

	resp, err := ParseStatResponse(buf)
	if err != nil {
		t.Fatalf("ParseStatResponse: %v", err)
	}
	if len(resp.Players) != 1 || resp.Players[0] != "Alex" {
		t.Errorf("Players = %q, want [Alex]", resp.Players)
	}
}

func TestParseStatResponseNoPlayers(t *testing.T) {
	buf := statBody(0x01, [][2]string{{"numplayers", "0"}}, true)

	resp, err := ParseStatResponse(buf)
	if err != nil {
		t.Fatalf("ParseStatResponse: %v", err)
	}
	if resp.Players == nil || len(resp.Players) != 0 {
		t.Errorf("Players = %#v, want empty non-nil slice", resp.Players)
	}
}

func TestParseStatResponseTruncated(t *testing.T) {
	full := statBody(0x01, [][2]string{{"hostname", "A Server"}}, true, "Notch")
	kvStart := statHeaderSize + statPaddingSize

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrTruncatedResponse},
		{"wrong_type", []byte{0x09, 0x00}, ErrUnexpectedPacketID},
		{"short_header", full[:8], ErrTruncatedResponse},
		{"no_fields", full[:kvStart], ErrTruncatedResponse},
		{"cut_in_key", full[:kvStart+4], ErrTruncatedResponse},
		{"cut_in_value", full[:kvStart+len("hostname\x00A Ser")], ErrTruncatedResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseStatResponse(tc.buf)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
