package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHashKnownValue(t *testing.T) {
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		ServerHash("abc"))
}

func TestVerifyCommitment(t *testing.T) {
	hash := ServerHash("abc")
	assert.True(t, VerifyCommitment("abc", hash))
	assert.True(t, VerifyCommitment("abc", "  BA7816BF8F01CFEA414140DE5DAE2223B00361A396177A9CB410FF61F20015AD "))
	assert.False(t, VerifyCommitment("abd", hash))
	assert.False(t, VerifyCommitment("abc", hash[:63]))
}

func TestIndexedMessageHasNoDelimiter(t *testing.T) {
	assert.Equal(t, "xyz0", IndexedMessage("xyz", 0))
	assert.Equal(t, "xyz12", IndexedMessage("xyz", 12))
	assert.Equal(t, DigestHex("k", "xyz12"), IndexedDigestHex("k", "xyz", 12))
	assert.NotEqual(t, IndexedDigestHex("k", "xyz1", 2), IndexedDigestHex("k", "xyz", 1))
}

func TestSeedsValidate(t *testing.T) {
	tests := []struct {
		name  string
		seeds Seeds
		field string
	}{
		{"empty server", Seeds{Stain: "s"}, "server_seed"},
		{"empty stain", Seeds{Server: "s"}, "stain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seeds.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.field, ie.Field)
		})
	}
	assert.NoError(t, Seeds{Server: "a", Stain: "b"}.Validate())
}

func TestFloatConventionBoundaries(t *testing.T) {
	zeros := "0000000000000000000000000000000000000000000000000000000000000000"
	ones := "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	half := "8000000000000000000000000000000000000000000000000000000000000000"

	f, err := Float64Bit.Extract(zeros)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)

	// the 64-bit divisor rounds to 2^64, so the all-ones prefix reaches 1.0
	f, err = Float64Bit.Extract(ones)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = Float52Bit.Extract(ones)
	require.NoError(t, err)
	assert.Less(t, f, 1.0)

	f, err = Float64Bit.Extract(half)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	f, err = Float52Bit.Extract(half)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)
}

func TestFloatRangeOverRandomSeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10_000; i++ {
		seed := fmt.Sprintf("%016x%016x", rng.Uint64(), rng.Uint64())
		stain := fmt.Sprintf("%x", rng.Uint32())
		digest := DigestHex(seed, stain)

		for _, conv := range []FloatConvention{Float64Bit, Float52Bit} {
			f, err := conv.Extract(digest)
			require.NoError(t, err)
			if f < 0 || f >= 1 {
				t.Fatalf("%s float %v out of [0,1) for seed %q stain %q", conv, f, seed, stain)
			}
		}
	}
}

func TestFloatBreakdown(t *testing.T) {
	b, err := Float52Bit.Breakdown("0000000000001ffff")
	require.NoError(t, err)
	assert.Equal(t, "0000000000001", b.Prefix)
	assert.Equal(t, uint64(1), b.Integer)
	assert.Equal(t, "4503599627370496", b.Denominator)

	b, err = Float64Bit.Breakdown("00000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), b.Integer)
	assert.Equal(t, "18446744073709551615", b.Denominator)
}

func TestFloatExtractRejectsBadDigests(t *testing.T) {
	_, err := Float64Bit.Extract("abc")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Float64Bit.Extract("zzzzzzzzzzzzzzzz")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = FloatConvention("32bit").Extract("00000000000000000")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseFloatConvention(t *testing.T) {
	for in, want := range map[string]FloatConvention{
		"64bit": Float64Bit, "64": Float64Bit, "CLI": Float64Bit,
		"52bit": Float52Bit, " 52 ": Float52Bit, "browser": Float52Bit,
	} {
		got, err := ParseFloatConvention(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFloatConvention("double")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestByteStreamReadsBaseDigestFirst(t *testing.T) {
	seeds := Seeds{Server: "abc", Stain: "xyz"}
	base := DigestBytes(seeds.Server, seeds.Stain)
	s := NewByteStream(seeds)
	assert.Equal(t, 32, s.Len())

	for i := 0; i < 4; i++ {
		v := s.Uint64At(51 - i)
		var want uint64
		for _, b := range base[i*8 : i*8+8] {
			want = want<<8 | uint64(b)
		}
		assert.Equal(t, want, v)
	}
	assert.Empty(t, s.Extensions())

	// fifth read needs more bytes and is keyed by its own loop index
	next := IndexedDigestBytes(seeds.Server, seeds.Stain, 47)
	v := s.Uint64At(47)
	var want uint64
	for _, b := range next[:8] {
		want = want<<8 | uint64(b)
	}
	assert.Equal(t, want, v)
	assert.Equal(t, []int{47}, s.Extensions())
	assert.Equal(t, 64, s.Len())
	assert.Equal(t, 40, s.Cursor())
}

func TestByteStreamFullShuffleConsumption(t *testing.T) {
	s := NewByteStream(Seeds{Server: "a", Stain: "b"})
	for i := 51; i > 0; i-- {
		s.Uint64At(i)
	}
	assert.Equal(t, 408, s.Cursor())
	assert.Equal(t, 416, s.Len())
	assert.Equal(t, []int{47, 43, 39, 35, 31, 27, 23, 19, 15, 11, 7, 3}, s.Extensions())
}

func BenchmarkByteStreamShuffle(b *testing.B) {
	seeds := Seeds{Server: "bench-server", Stain: "bench-stain"}
	for n := 0; n < b.N; n++ {
		s := NewByteStream(seeds)
		for i := 51; i > 0; i-- {
			s.Uint64At(i)
		}
	}
}
