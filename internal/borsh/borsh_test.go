package borsh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_KnownLayout(t *testing.T) {
	enc := NewEncoder(32)
	enc.WriteU8(6)
	enc.WriteString("RWD")
	enc.WriteU64(100)
	enc.WriteBool(true)

	want := []byte{
		6,
		3, 0, 0, 0, 'R', 'W', 'D',
		100, 0, 0, 0, 0, 0, 0, 0,
		1,
	}
	assert.Equal(t, want, enc.Bytes())
	assert.Equal(t, len(want), enc.Len())
}

func TestDecoder_ReadsWhatEncoderWrote(t *testing.T) {
	enc := NewEncoder(64)
	enc.WriteString("RewardCoin")
	enc.WriteI64(-42)
	enc.WriteU32(7)
	enc.WriteOption(true, []byte{1, 2, 3})
	enc.WriteOption(false, []byte{9, 9, 9})

	dec := NewDecoder(enc.Bytes())
	assert.Equal(t, "RewardCoin", dec.ReadString())
	assert.Equal(t, int64(-42), dec.ReadI64())
	assert.Equal(t, uint32(7), dec.ReadU32())

	ok, v := dec.ReadOption(3)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)

	ok, v = dec.ReadOption(3)
	assert.False(t, ok)
	assert.Nil(t, v)

	require.NoError(t, dec.Finish())
}

func TestDecoder_ShortBufferSticks(t *testing.T) {
	dec := NewDecoder([]byte{1, 2, 3})
	_ = dec.ReadU64()
	assert.True(t, errors.Is(dec.Err(), ErrShortBuffer))

	// later reads keep the first error
	assert.Equal(t, uint8(0), dec.ReadU8())
	assert.True(t, errors.Is(dec.Finish(), ErrShortBuffer))
}

func TestDecoder_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(d *Decoder)
		want error
	}{
		{
			name: "bool out of range",
			data: []byte{2},
			read: func(d *Decoder) { d.ReadBool() },
			want: ErrInvalidBool,
		},
		{
			name: "option tag out of range",
			data: []byte{2, 0, 0, 0, 0},
			read: func(d *Decoder) { d.ReadOption(1) },
			want: ErrInvalidOption,
		},
		{
			name: "string longer than input",
			data: []byte{10, 0, 0, 0, 'a'},
			read: func(d *Decoder) { d.ReadString() },
			want: ErrShortBuffer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(tt.data)
			tt.read(dec)
			assert.ErrorIs(t, dec.Err(), tt.want)
		})
	}
}

func TestDecoder_TrailingBytes(t *testing.T) {
	dec := NewDecoder([]byte{1, 0})
	assert.Equal(t, uint8(1), dec.ReadU8())
	assert.Equal(t, 1, dec.Remaining())
	assert.ErrorIs(t, dec.Finish(), ErrTrailingBytes)
}
