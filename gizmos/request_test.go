package gizmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestAcceptDresWinsOnce(t *testing.T) {
	req := Mk_request("0000000001", Mk_cos(1, "default"), []byte("payload"))
	req.SetActiveHost("host-a")

	assert.True(t, req.Accept_dres("host-a", []byte("result-a")))
	assert.False(t, req.Accept_dres("host-b", []byte("result-b"))) // already won

	assert.Equal(t, "host-a", req.GetHost())
	assert.Equal(t, []byte("result-a"), req.Snapshot().Result)
	assert.True(t, req.Dres_is_set())

	select {
	case <-req.DoneChan():
	default:
		t.Fatal("done channel should be closed after Accept_dres succeeds")
	}
}

func TestRequestAcceptDresMarksWinningAttempt(t *testing.T) {
	req := Mk_request("0000000002", Mk_cos(1, "default"), nil)
	att := req.New_attempt()
	att.SetHost("host-a")
	att.SetState(DREQ)

	req.Accept_dres("host-a", []byte("ok"))
	assert.Equal(t, DRES, att.GetState())
}

func TestRequestLateFlag(t *testing.T) {
	req := Mk_request("0000000003", Mk_cos(1, "default"), nil)
	assert.False(t, req.Is_late())
	req.Set_late(true)
	assert.True(t, req.Is_late())
}

func TestProviderRequestMarkFreedOnce(t *testing.T) {
	pr := Mk_provider_request("host-a", "0000000004", Mk_cos(1, "default"))
	assert.True(t, pr.Mark_freed())
	assert.False(t, pr.Mark_freed())

	pr.Reset_freed()
	assert.True(t, pr.Mark_freed())
}

func TestProviderRequestCasState(t *testing.T) {
	pr := Mk_provider_request("host-a", "0000000005", Mk_cos(1, "default"))
	assert.Equal(t, HREQ, pr.Get_state())
	assert.True(t, pr.Cas_state(HREQ, HRES))
	assert.False(t, pr.Cas_state(HREQ, RRES)) // no longer in HREQ
	assert.Equal(t, HRES, pr.Get_state())
}

func TestProviderRequestCancelIsIdempotent(t *testing.T) {
	pr := Mk_provider_request("host-a", "0000000006", Mk_cos(1, "default"))
	ch := pr.Cancel_chan()
	pr.Cancel()
	pr.Cancel() // must not panic on double-close

	select {
	case <-ch:
	default:
		t.Fatal("cancel channel should be closed")
	}
}

func TestProviderRequestRearmCancelIsIndependent(t *testing.T) {
	pr := Mk_provider_request("host-a", "0000000007", Mk_cos(1, "default"))
	first := pr.Cancel_chan()
	pr.Cancel()

	second := pr.Rearm_cancel()
	select {
	case <-second:
		t.Fatal("rearmed channel should not already be closed")
	default:
	}
	assert.NotEqual(t, first, second)
}
