package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeEnvelope(t *testing.T) {
	data, err := EncodeEnvelope("<b>hi</b>")
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"<b>hi</b>"}`, string(data))
}

func TestDecodeEnvelope(t *testing.T) {
	text, err := DecodeEnvelope([]byte(`{"message":"look"}`))
	require.NoError(t, err)
	assert.Equal(t, "look", text)

	text, err = DecodeEnvelope([]byte(`{"message":""}`))
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, frame := range []string{``, `look`, `{}`, `{"msg":"look"}`, `{"message":42}`, `[1,2]`} {
		_, err := DecodeEnvelope([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedFrame, "frame %q", frame)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"message.location","location":3,"message":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, BroadcastEvent{Type: TypeLocation, Location: 3, Message: "x"}, ev)

	_, err = DecodeEvent([]byte(`{"type":"message.other","location":3}`))
	assert.Error(t, err)
	_, err = DecodeEvent([]byte(`nope`))
	assert.Error(t, err)
}

// Property: any text survives an envelope encode/decode.
func TestPropertyEnvelopeText(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.String().Draw(rt, "text")
		data, err := EncodeEnvelope(text)
		if err != nil {
			rt.Fatalf("EncodeEnvelope: %v", err)
		}
		got, err := DecodeEnvelope(data)
		if err != nil {
			rt.Fatalf("DecodeEnvelope: %v", err)
		}
		// encoding/json replaces invalid UTF-8 with U+FFFD.
		want := []rune(text)
		assert.Equal(rt, string(want), got)
	})
}
