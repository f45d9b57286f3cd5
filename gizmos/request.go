// vi: sw=4 ts=4:

/*

	Mnemonic:	request
	Abstract:	Consumer-side Request/Attempt/Response bookkeeping and the
				provider-side ProviderRequest, per the data model. Styled on
				the source's Pledge: nil-safe getters and value-copy
				Snapshot methods for the persistence adapter. Cyclic Request<->Attempt
				references are avoided: Request owns its Attempts; an
				Attempt carries only its req id.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package gizmos

import (
	"sync"
	"time"
)

/*
	Attempt is one pass through the HREQ->RREQ->DREQ chain for a request.
	Normally touched only by the consumer goroutine driving it, but a late
	DRES accepted onto this attempt by the answering machine's acceptor
	(see Request.Accept_dres) runs on a different goroutine, so every
	field is behind a mutex per the "read dres_at, then mutate" critical
	section design note.
*/
type Attempt struct {
	mu sync.Mutex

	ReqId     string
	AttemptNo int
	Host      string
	State     uint8 // HREQ, RREQ, DREQ, DRES, RCAN, DCAN
	Hreq_at   int64
	Hres_at   int64
	Rres_at   int64
	Dres_at   int64
}

func Mk_attempt(reqId string, no int) *Attempt {
	return &Attempt{ReqId: reqId, AttemptNo: no, State: HREQ, Hreq_at: time.Now().Unix()}
}

func (a *Attempt) SetState(s uint8) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.State = s
}

func (a *Attempt) GetState() uint8 {
	if a == nil {
		return FAIL
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.State
}

func (a *Attempt) SetHost(host string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Host = host
}

func (a *Attempt) GetHost() string {
	if a == nil {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Host
}

func (a *Attempt) SetHresAt() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Hres_at = time.Now().Unix()
}

func (a *Attempt) SetRresAt() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rres_at = time.Now().Unix()
}

/*
	AttemptSnapshot is a value copy of an Attempt's fields, safe to pass to
	the persistence adapter without sharing the mutex.
*/
type AttemptSnapshot struct {
	ReqId     string
	AttemptNo int
	Host      string
	State     uint8
	Hreq_at   int64
	Hres_at   int64
	Rres_at   int64
	Dres_at   int64
}

func (a *Attempt) Snapshot() AttemptSnapshot {
	if a == nil {
		return AttemptSnapshot{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return AttemptSnapshot{
		ReqId: a.ReqId, AttemptNo: a.AttemptNo, Host: a.Host, State: a.State,
		Hreq_at: a.Hreq_at, Hres_at: a.Hres_at, Rres_at: a.Rres_at, Dres_at: a.Dres_at,
	}
}

/*
	Response is an observation log entry: one provider's offer seen for a
	given attempt of a request.
*/
type Response struct {
	ReqId     string
	AttemptNo int
	Host      string
	Cpu       int
	Ram       float64
	Disk      float64
	Timestamp int64
}

/*
	Request is the consumer-side record for one send_request call. All
	mutation of Host/Result/Dres_at/State goes through the methods here so
	the "read dres_at, then mutate" critical section (see the design notes
	on late-DRES acceptance) is centralised in one place.
*/
type Request struct {
	mu sync.Mutex

	Id   string
	Cos  *CoS
	Data []byte

	Result []byte
	Host   string
	State  uint8 // HREQ, RREQ, DREQ, DRES, FAIL

	Hreq_at int64
	Dres_at int64

	Late bool

	// active_host is the host the current attempt is negotiating with;
	// used by the answering machine to tell an expected reply from a
	// late/foreign one (see RRES/DRES routing).
	active_host string

	Attempts map[int]*Attempt
	next_no  int

	done chan struct{} // closed exactly once, by the Accept_dres that wins
}

func Mk_request(id string, cos *CoS, data []byte) *Request {
	return &Request{
		Id:       id,
		Cos:      cos,
		Data:     data,
		State:    HREQ,
		Hreq_at:  time.Now().Unix(),
		Attempts: make(map[int]*Attempt),
		done:     make(chan struct{}),
	}
}

/*
	DoneChan returns the channel closed exactly once a DRES is accepted
	(by whichever goroutine wins Accept_dres); phases block on it
	alongside their own timeout so a background late acceptance wakes a
	consumer task immediately instead of only at its next timeout.
*/
func (r *Request) DoneChan() <-chan struct{} {
	return r.done
}

func (r *Request) SetActiveHost(host string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active_host = host
}

func (r *Request) ActiveHost() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active_host
}

func (r *Request) GetHost() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Host
}

func (r *Request) Get_id() string {
	if r == nil {
		return ""
	}
	return r.Id
}

func (r *Request) Get_cos() *CoS {
	if r == nil {
		return nil
	}
	return r.Cos
}

/*
	New_attempt allocates the next Attempt for this request and registers it.
*/
func (r *Request) New_attempt() *Attempt {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next_no++
	a := Mk_attempt(r.Id, r.next_no)
	r.Attempts[a.AttemptNo] = a
	return a
}

/*
	Current_attempt returns the most recently allocated attempt, or nil if
	none has been created yet.
*/
func (r *Request) Current_attempt() *Attempt {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Attempts[r.next_no]
}

/*
	Dres_is_set is the "read dres_at" half of the critical section described
	in the design notes: callers that are about to decide whether to accept
	a DRES must take this (or better, call Accept_dres directly) rather than
	reading Dres_at without the lock.
*/
func (r *Request) Dres_is_set() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Dres_at != 0
}

/*
	Accept_dres is the single atomic write-once path for a successful
	result: it sets host/result/dres_at/state together iff dres_at was
	still unset, and reports whether it won the race. The answering
	machine's onDres calls it for both the active host's DRES and a late
	foreign one; the consumer's DREQ phase never writes these fields and
	only observes the outcome through DoneChan/Dres_is_set.
*/
func (r *Request) Accept_dres(host string, result []byte) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Dres_at != 0 {
		obj_sheep.Baa(2, "dres from %s for %s lost the race, already accepted from %s", host, r.Id, r.Host)
		return false
	}
	obj_sheep.Baa(1, "dres accepted for %s from %s", r.Id, host)
	r.Host = host
	r.Result = result
	r.Dres_at = time.Now().Unix()
	r.State = DRES

	// mark whichever attempt was talking to this host as the winner; a
	// request may have several attempts (one per host tried), but only
	// the one whose DREQ this DRES answers should flip to DRES: the most
	// recent attempt negotiated with this host.
	var win *Attempt
	for _, a := range r.Attempts {
		if a.GetHost() == host && (win == nil || a.AttemptNo > win.AttemptNo) {
			win = a
		}
	}
	if win != nil {
		win.SetState(DRES)
	}

	close(r.done)
	return true
}

func (r *Request) Set_state(s uint8) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = s
}

func (r *Request) Get_state() uint8 {
	if r == nil {
		return FAIL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

func (r *Request) Set_late(v bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Late = v
}

func (r *Request) Is_late() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Late
}

/*
	Snapshot returns a value copy of the fields needed for persistence,
	taken under the lock so it reflects a single consistent state.
*/
type RequestSnapshot struct {
	Id      string
	CosId   int
	Host    string
	State   uint8
	Result  []byte
	Hreq_at int64
	Dres_at int64
}

func (r *Request) Snapshot() RequestSnapshot {
	if r == nil {
		return RequestSnapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return RequestSnapshot{
		Id:      r.Id,
		CosId:   r.Cos.Get_id(),
		Host:    r.Host,
		State:   r.State,
		Result:  r.Result,
		Hreq_at: r.Hreq_at,
		Dres_at: r.Dres_at,
	}
}

// ----------------------------------------------------------------------

/*
	ProviderRequest is the provider-side record for one (peer, req_id) pair.
*/
type ProviderRequest struct {
	mu sync.Mutex

	Peer  string
	ReqId string
	Cos   *CoS
	State uint8 // HREQ, HRES, RRES, DRES

	Result    []byte
	Freed     bool
	Executing bool

	cancel chan struct{} // closed to stop an in-flight reservation/execution responder
}

func Mk_provider_request(peer string, reqId string, cos *CoS) *ProviderRequest {
	return &ProviderRequest{
		Peer:  peer,
		ReqId: reqId,
		Cos:   cos,
		State: HREQ,
	}
}

func (p *ProviderRequest) Get_state() uint8 {
	if p == nil {
		return FAIL
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.State
}

func (p *ProviderRequest) Set_state(s uint8) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = s
}

/*
	Cas_state compares-and-swaps State, returning true iff it was `from`.
*/
func (p *ProviderRequest) Cas_state(from uint8, to uint8) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State != from {
		return false
	}
	p.State = to
	return true
}

func (p *ProviderRequest) Is_freed() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Freed
}

/*
	Mark_freed sets Freed true iff it was false, returning whether this call
	won the race (so the caller knows it -- and only it -- must release the
	ledger reservation).
*/
func (p *ProviderRequest) Mark_freed() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Freed {
		return false
	}
	p.Freed = true
	return true
}

/*
	Reset_freed clears Freed when a new reservation instance begins on this
	entry (RREQ succeeds again after an earlier reservation on the same
	entry was released) so the next Mark_freed call isn't a no-op.
*/
func (p *ProviderRequest) Reset_freed() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Freed = false
}

func (p *ProviderRequest) Is_executing() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Executing
}

func (p *ProviderRequest) Set_executing(v bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Executing = v
}

/*
	Set_cos rebinds the CoS bound to this entry; the consumer's CoS choice
	may change across HREQ retries of the same request id.
*/
func (p *ProviderRequest) Set_cos(cos *CoS) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Cos = cos
}

func (p *ProviderRequest) Get_cos() *CoS {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cos
}

func (p *ProviderRequest) Set_result(result []byte) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Result = result
}

func (p *ProviderRequest) Get_result() []byte {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Result
}

/*
	Cancel_chan lazily creates and returns the channel that a background
	responder should select on to notice cancellation; Cancel closes it.
*/
func (p *ProviderRequest) Cancel_chan() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		p.cancel = make(chan struct{})
	}
	return p.cancel
}

func (p *ProviderRequest) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		select {
		case <-p.cancel:
		default:
			close(p.cancel)
		}
	}
}

/*
	Rearm_cancel replaces the cancel channel with a fresh one and returns
	it. Used when a responder phase that already consumed one cancel
	signal (the reservation-responder stopping on implicit DREQ
	acceptance) hands off to the next phase (the execution-responder),
	which needs its own independent cancel signal.
*/
func (p *ProviderRequest) Rearm_cancel() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel = make(chan struct{})
	return p.cancel
}
