// vi: sw=4 ts=4:

/*

	Mnemonic:	registry
	Abstract:	Request Registry: the consumer-side (req_id -> Request) and
				provider-side ((peer, req_id) -> ProviderRequest) in-memory
				tables. The consumer-side table is pre-seeded at startup
				with any request id already present in persistence so a
				freshly generated id can never collide with a persisted
				one.
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"database/sql"
	"sync"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

type providerKey struct {
	peer  string
	reqId string
}

/*
	Registry holds the two live tables. Mutations to a given key always go
	through the goroutine that owns that key's lifecycle (the consumer
	task for a Request, the provider branch handler for a ProviderRequest)
	except for the narrow atomic write described on Request.Accept_dres.
*/
type Registry struct {
	mu   sync.RWMutex
	cons map[string]*gizmos.Request
	prov map[providerKey]*gizmos.ProviderRequest

	seen map[string]bool // request ids already used, live or persisted

	consWait map[string]chan Inbound // per-live-request inbox the answering machine forwards matched replies to
}

func Mk_registry(db *sql.DB) *Registry {
	r := &Registry{
		cons:     make(map[string]*gizmos.Request),
		prov:     make(map[providerKey]*gizmos.ProviderRequest),
		seen:     make(map[string]bool),
		consWait: make(map[string]chan Inbound),
	}
	r.preseed(db)
	return r
}

func (r *Registry) preseed(db *sql.DB) {
	if db == nil {
		return
	}
	rows, err := db.Query("SELECT id FROM requests")
	if err != nil {
		return // table may not exist yet on a brand new database
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			r.seen[id] = true
		}
	}
}

/*
	Fresh_id generates a request id guaranteed not to collide with any live
	or persisted request on this node.
*/
func (r *Registry) Fresh_id() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := gizmos.Gen_req_id()
		if !r.seen[id] {
			r.seen[id] = true
			return id
		}
	}
}

func (r *Registry) Put_request(req *gizmos.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cons[req.Id] = req
}

func (r *Registry) Get_request(id string) *gizmos.Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cons[id]
}

/*
	Drop_request removes a request from the live table; called once it has
	reached DRES or FAIL and been persisted, per the lifecycle in the data
	model.
*/
func (r *Registry) Drop_request(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cons, id)
}

/*
	Reg_cons_wait allocates the inbox the answering machine forwards
	same-attempt replies into for a live request; call once when the
	request starts waiting and Unreg_cons_wait when send_request returns.
*/
func (r *Registry) Reg_cons_wait(id string) chan Inbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan Inbound, 8)
	r.consWait[id] = ch
	return ch
}

func (r *Registry) Cons_wait_chan(id string) chan Inbound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.consWait[id]
}

func (r *Registry) Unreg_cons_wait(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consWait, id)
}

func (r *Registry) Get_or_make_provider_request(peer string, reqId string, cos *gizmos.CoS) (*gizmos.ProviderRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := providerKey{peer, reqId}
	if pr, ok := r.prov[k]; ok {
		return pr, false
	}
	pr := gizmos.Mk_provider_request(peer, reqId, cos)
	r.prov[k] = pr
	return pr, true
}

func (r *Registry) Get_provider_request(peer string, reqId string) *gizmos.ProviderRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prov[providerKey{peer, reqId}]
}

func (r *Registry) Drop_provider_request(peer string, reqId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prov, providerKey{peer, reqId})
}
