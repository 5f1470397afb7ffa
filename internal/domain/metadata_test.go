package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSpaces(t *testing.T) {
	assert.Equal(t, 89, TokenInfoSpace)
	assert.Equal(t, 56, StakeInfoSpace)
}

func TestDiscriminators(t *testing.T) {
	// sha256("account:TokenInfo")[:8], sha256("account:StakeInfo")[:8]
	assert.Equal(t, [8]byte{109, 162, 52, 125, 77, 166, 37, 202}, TokenInfoDiscriminator)
	assert.Equal(t, [8]byte{66, 62, 68, 70, 108, 179, 183, 235}, StakeInfoDiscriminator)
}

func TestTokenInfo_Layout(t *testing.T) {
	authority := MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	info := &TokenInfo{Name: "RewardCoin", Symbol: "RWD", Decimals: 6, Authority: authority}

	data, err := info.MarshalBinary()
	require.NoError(t, err)

	// discriminator | 4+10 | 4+3 | 1 | 32
	assert.Len(t, data, 8+14+7+1+32)
	assert.Equal(t, TokenInfoDiscriminator[:], data[:8])
	assert.Equal(t, []byte{10, 0, 0, 0}, data[8:12])
	assert.Equal(t, "RewardCoin", string(data[12:22]))

	// Stored inside zero-padded space
	space := make([]byte, TokenInfoSpace)
	copy(space, data)

	var decoded TokenInfo
	require.NoError(t, decoded.UnmarshalBinary(space))
	assert.Equal(t, *info, decoded)
}

func TestTokenInfo_MaxLengthsFitSpace(t *testing.T) {
	info := &TokenInfo{
		Name:   string(make([]byte, MaxNameLen)),
		Symbol: string(make([]byte, MaxSymbolLen)),
	}
	data, err := info.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, TokenInfoSpace)
}

func TestStakeInfo_Layout(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	info := &StakeInfo{User: kp.PublicKey(), Amount: 30, Timestamp: 1700000000}
	data, err := info.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, StakeInfoSpace)

	var decoded StakeInfo
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, *info, decoded)
}

func TestRecord_WrongDiscriminator(t *testing.T) {
	stake := &StakeInfo{Amount: 1}
	data, err := stake.MarshalBinary()
	require.NoError(t, err)

	var info TokenInfo
	assert.ErrorIs(t, info.UnmarshalBinary(data), ErrDiscriminatorMismatch)
	assert.ErrorIs(t, info.UnmarshalBinary([]byte{1, 2}), ErrDataTooSmall)
}
