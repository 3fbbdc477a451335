package firehose

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func encodeFrame(t *testing.T, hdr frameHeader, body interface{}) []byte {
	t.Helper()
	out, err := cbor.Marshal(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		b, err := cbor.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, b...)
	}
	return out
}

func TestCheckFrameRelayError(t *testing.T) {
	frame := encodeFrame(t, frameHeader{Op: frameOpError},
		RelayError{Code: "ConsumerTooSlow", Message: "consumer is too slow"})

	err := CheckFrame(frame)
	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		t.Fatalf("CheckFrame = %v, want *RelayError", err)
	}
	if !relayErr.TooSlow() {
		t.Error("ConsumerTooSlow should report TooSlow")
	}
}

func TestCheckFrameOtherRelayError(t *testing.T) {
	frame := encodeFrame(t, frameHeader{Op: frameOpError},
		RelayError{Code: "FutureCursor", Message: "cursor is in the future"})

	err := CheckFrame(frame)
	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		t.Fatalf("CheckFrame = %v, want *RelayError", err)
	}
	if relayErr.TooSlow() {
		t.Error("FutureCursor must not be treated as ConsumerTooSlow")
	}
}

func TestCheckFramePassesMessages(t *testing.T) {
	frame := encodeFrame(t, frameHeader{Op: frameOpMessage, Type: "#commit"}, nil)
	if err := CheckFrame(frame); err != nil {
		t.Errorf("message frames should pass CheckFrame, got %v", err)
	}
}

func TestParseCommitSkipsNonCommitFrames(t *testing.T) {
	for _, typ := range []string{"#identity", "#account", "#handle", "#info"} {
		frame := encodeFrame(t, frameHeader{Op: frameOpMessage, Type: typ}, map[string]interface{}{"seq": 1})
		if _, err := ParseCommit(frame); !errors.Is(err, ErrNotCommit) {
			t.Errorf("frame type %s: got %v, want ErrNotCommit", typ, err)
		}
	}
}

func TestParseCommitMalformed(t *testing.T) {
	for _, frame := range [][]byte{
		nil,
		{},
		{0xff, 0x01, 0x02},
		[]byte("plain text"),
	} {
		if _, err := ParseCommit(frame); err == nil {
			t.Errorf("ParseCommit(%v) should fail", frame)
		}
	}

	// Valid header, garbage commit body.
	frame := encodeFrame(t, frameHeader{Op: frameOpMessage, Type: "#commit"}, nil)
	frame = append(frame, 0xff, 0xff)
	if _, err := ParseCommit(frame); err == nil {
		t.Error("garbage commit body should fail to parse")
	}
}
