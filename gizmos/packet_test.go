package gizmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTripHreq(t *testing.T) {
	p := Mk_hreq("abcdefghij", 3, 7)
	b, err := p.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, p.State, got.State)
	assert.Equal(t, p.ReqId, got.ReqId)
	assert.Equal(t, p.AttemptNo, got.AttemptNo)
	assert.Equal(t, uint32(7), got.Hreq_cos_id())
}

func TestPacketRoundTripHres(t *testing.T) {
	p := Mk_hres("abcdefghij", 1, 4, 2048.5, 100.25)
	b, err := p.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, p.CpuOffer, got.CpuOffer)
	assert.Equal(t, p.RamOffer, got.RamOffer)
	assert.Equal(t, p.DiskOffer, got.DiskOffer)
}

func TestPacketRoundTripDreqWithData(t *testing.T) {
	p := Mk_dreq("abcdefghij", 2, []byte("hello world"))
	b, err := p.Encode()
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, p.AttemptNo, got.AttemptNo)
	assert.Equal(t, p.Data, got.Data)
}

func TestPacketRoundTripSimpleStates(t *testing.T) {
	for _, s := range []uint8{RREQ, RRES, RCAN, DACK, DCAN, DWAIT} {
		p := Mk_simple(s, "abcdefghij")
		b, err := p.Encode()
		require.NoError(t, err)

		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, s, got.State)
		assert.Equal(t, p.ReqId, got.ReqId)
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode([]byte{HREQ, 'a', 'b'})
	assert.Error(t, err)
}

func TestDecodeRejectsTruncatedHres(t *testing.T) {
	p := Mk_hres("abcdefghij", 1, 4, 1.0, 1.0)
	b, err := p.Encode()
	require.NoError(t, err)

	_, err = Decode(b[:len(b)-4])
	assert.Error(t, err)
}

func TestAnswersTable(t *testing.T) {
	hreq := Mk_simple(HREQ, "abcdefghij")
	assert.True(t, Mk_simple(HRES, hreq.ReqId).Answers(hreq))
	assert.False(t, Mk_simple(RREQ, hreq.ReqId).Answers(hreq))

	dreq := Mk_simple(DREQ, "abcdefghij")
	assert.True(t, Mk_simple(DRES, dreq.ReqId).Answers(dreq))
	assert.True(t, Mk_simple(DWAIT, dreq.ReqId).Answers(dreq))
	assert.True(t, Mk_simple(DCAN, dreq.ReqId).Answers(dreq))

	dres := Mk_simple(DRES, "abcdefghij")
	assert.True(t, Mk_simple(DACK, dres.ReqId).Answers(dres))
	assert.True(t, Mk_simple(DCAN, dres.ReqId).Answers(dres))
	assert.False(t, Mk_simple(DREQ, dres.ReqId).Answers(dres))
}

func TestEncodeRejectsBadReqIdLength(t *testing.T) {
	p := Mk_simple(RREQ, "short")
	_, err := p.Encode()
	assert.Error(t, err)
}
