package typecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/fieldvault/internal/fverr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		tagged  string
		decoded any
	}{
		{name: "string", value: "alice", tagged: "string:alice", decoded: "alice"},
		{name: "string with colons", value: "a:b:c", tagged: "string:a:b:c", decoded: "a:b:c"},
		{name: "int", value: 42, tagged: "int:42", decoded: 42},
		{name: "int32 widens to int", value: int32(7), tagged: "int:7", decoded: 7},
		{name: "int64", value: int64(1 << 40), tagged: "int64:1099511627776", decoded: int64(1 << 40)},
		{name: "float64", value: 3.25, tagged: "float64:3.25", decoded: 3.25},
		{name: "bool", value: true, tagged: "bool:true", decoded: true},
		{name: "empty string stays empty", value: "", tagged: "", decoded: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagged, err := Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.tagged, tagged)

			decoded, err := Decode(tagged)
			require.NoError(t, err)
			assert.Equal(t, tt.decoded, decoded)
		})
	}
}

func TestDecodeChar(t *testing.T) {
	decoded, err := Decode("char:x")
	require.NoError(t, err)
	assert.Equal(t, 'x', decoded)
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(struct{}{})
	assert.ErrorIs(t, err, fverr.ErrUnsupportedType)

	_, err = Encode([]string{"a"})
	assert.ErrorIs(t, err, fverr.ErrUnsupportedType)
}

func TestDecodeRejectsUnknownTags(t *testing.T) {
	tests := []struct {
		name   string
		tagged string
	}{
		{name: "unknown type", tagged: "complex128:1+2i"},
		{name: "no separator", tagged: "justtext"},
		{name: "corrupt int", tagged: "int:notanumber"},
		{name: "corrupt bool", tagged: "bool:maybe"},
		{name: "empty char", tagged: "char:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.tagged)
			assert.ErrorIs(t, err, fverr.ErrUnsupportedType)
		})
	}
}
