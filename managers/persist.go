// vi: sw=4 ts=4:

/*

	Mnemonic:	persist
	Abstract:	Persistence Adapter: a single worker goroutine owning the
				sqlite connection, serialising every insert/update/export
				behind a channel of requests, each acknowledged back to the
				caller via a completion channel carried on the request
				itself. There is no select operation on the worker: the two
				startup reads (registry preseed, cos table load) query the
				handle directly. This is the canonical "thread reading off a
				queue" solution for a store that is not safe under
				concurrent access from many callers, grounded on the
				source's dblib.py (DB_PATH/DB_DEFS_PATH, table names) and
				on the teacher's single-writer manager-goroutine shape
				(res_mgr.go's Res_manager loop).
	Date:		29 July 2026
	Author:		netapp-sim contributors
*/

package managers

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/youcefouarab/netapp-sim/gizmos"
)

type persistOp int

const (
	opInsertRequest persistOp = iota
	opUpdateRequest
	opInsertAttempt
	opUpdateAttempt
	opInsertResponse
	opInsertCos
	opExportCSV
)

/*
	persistJob is one unit of work enqueued to the persistence worker; Done
	is the completion signal the spec calls for, carrying back any error
	and (for exports) the written file paths.
*/
type persistJob struct {
	op   persistOp
	req  gizmos.RequestSnapshot
	att  gizmos.AttemptSnapshot
	resp *gizmos.Response
	cos  *gizmos.CoS

	done chan persistResult
}

type persistResult struct {
	err   error
	files []string
}

/*
	Persistence owns the sqlite handle; all access is through its single
	worker goroutine started by Start.
*/
type Persistence struct {
	db   *sql.DB
	jobs chan persistJob
	cfg  *Config
}

func Mk_persistence(cfg *Config) (*Persistence, error) {
	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, errors.Wrap(err, "persist: open")
	}
	db.SetMaxOpenConns(1) // sqlite via modernc.org/sqlite is not safe for
	// concurrent writers; the single connection plus the single worker
	// goroutine below is the serialisation discipline the design calls for.

	p := &Persistence{db: db, jobs: make(chan persistJob, 64), cfg: cfg}
	if err := p.applySchema(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Persistence) applySchema() error {
	schema := defaultSchema
	if p.cfg.DatabaseDefsPath != "" {
		b, err := os.ReadFile(p.cfg.DatabaseDefsPath)
		if err != nil {
			return errors.Wrapf(err, "persist: reading %s", p.cfg.DatabaseDefsPath)
		}
		schema = string(b)
	}
	if _, err := p.db.Exec(schema); err != nil {
		return errors.Wrap(err, "persist: applying schema")
	}
	return nil
}

const defaultSchema = `
CREATE TABLE IF NOT EXISTS cos (
	id INTEGER PRIMARY KEY,
	name TEXT,
	max_response_time REAL,
	min_concurrent_users INTEGER,
	min_requests_per_sec REAL,
	min_bandwidth REAL,
	max_delay REAL,
	max_jitter REAL,
	max_loss_rate REAL,
	min_cpu INTEGER,
	min_ram REAL,
	min_disk REAL
);
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	cos_id INTEGER,
	host TEXT,
	state INTEGER,
	result BLOB,
	hreq_at INTEGER,
	dres_at INTEGER
);
CREATE TABLE IF NOT EXISTS attempts (
	req_id TEXT,
	attempt_no INTEGER,
	host TEXT,
	state INTEGER,
	hreq_at INTEGER,
	hres_at INTEGER,
	rres_at INTEGER,
	dres_at INTEGER,
	PRIMARY KEY (req_id, attempt_no)
);
CREATE TABLE IF NOT EXISTS responses (
	req_id TEXT,
	attempt_no INTEGER,
	host TEXT,
	cpu INTEGER,
	ram REAL,
	disk REAL,
	timestamp INTEGER
);
`

/*
	Start runs the single serialising worker. Call once; Persistence is
	useless after the context driving main's goroutine group shuts down.
*/
func (p *Persistence) Start() {
	go p.run()
}

func (p *Persistence) run() {
	for j := range p.jobs {
		res := persistResult{}
		switch j.op {
		case opInsertRequest:
			_, res.err = p.db.Exec(
				`INSERT OR REPLACE INTO requests (id, cos_id, host, state, result, hreq_at, dres_at) VALUES (?,?,?,?,?,?,?)`,
				j.req.Id, j.req.CosId, j.req.Host, j.req.State, j.req.Result, j.req.Hreq_at, j.req.Dres_at)
		case opUpdateRequest:
			_, res.err = p.db.Exec(
				`UPDATE requests SET host=?, state=?, result=?, dres_at=? WHERE id=?`,
				j.req.Host, j.req.State, j.req.Result, j.req.Dres_at, j.req.Id)
		case opInsertAttempt:
			_, res.err = p.db.Exec(
				`INSERT OR REPLACE INTO attempts (req_id, attempt_no, host, state, hreq_at, hres_at, rres_at, dres_at) VALUES (?,?,?,?,?,?,?,?)`,
				j.att.ReqId, j.att.AttemptNo, j.att.Host, j.att.State, j.att.Hreq_at, j.att.Hres_at, j.att.Rres_at, j.att.Dres_at)
		case opUpdateAttempt:
			_, res.err = p.db.Exec(
				`UPDATE attempts SET host=?, state=?, hres_at=?, rres_at=?, dres_at=? WHERE req_id=? AND attempt_no=?`,
				j.att.Host, j.att.State, j.att.Hres_at, j.att.Rres_at, j.att.Dres_at, j.att.ReqId, j.att.AttemptNo)
		case opInsertResponse:
			_, res.err = p.db.Exec(
				`INSERT INTO responses (req_id, attempt_no, host, cpu, ram, disk, timestamp) VALUES (?,?,?,?,?,?,?)`,
				j.resp.ReqId, j.resp.AttemptNo, j.resp.Host, j.resp.Cpu, j.resp.Ram, j.resp.Disk, j.resp.Timestamp)
		case opInsertCos:
			_, res.err = p.db.Exec(
				`INSERT OR REPLACE INTO cos (id, name, max_response_time, min_concurrent_users,
					min_requests_per_sec, min_bandwidth, max_delay, max_jitter, max_loss_rate,
					min_cpu, min_ram, min_disk) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				j.cos.Id, j.cos.Name, j.cos.Max_response_time, j.cos.Min_concurrent_users,
				j.cos.Min_requests_per_sec, j.cos.Min_bandwidth, j.cos.Max_delay, j.cos.Max_jitter,
				j.cos.Max_loss_rate, j.cos.Min_cpu, j.cos.Min_ram, j.cos.Min_disk)
		case opExportCSV:
			res.files, res.err = p.exportAll(j.req.Id)
		}
		if res.err != nil {
			per_sheep.Baa(1, "WRN: persist op %d failed: %s", j.op, res.err)
		}
		if j.done != nil {
			j.done <- res
		}
	}
}

func (p *Persistence) submit(j persistJob) persistResult {
	j.done = make(chan persistResult, 1)
	p.jobs <- j
	return <-j.done
}

func (p *Persistence) InsertRequest(s gizmos.RequestSnapshot) error {
	return p.submit(persistJob{op: opInsertRequest, req: s}).err
}

func (p *Persistence) UpdateRequest(s gizmos.RequestSnapshot) error {
	return p.submit(persistJob{op: opUpdateRequest, req: s}).err
}

func (p *Persistence) InsertAttempt(a gizmos.AttemptSnapshot) error {
	return p.submit(persistJob{op: opInsertAttempt, att: a}).err
}

func (p *Persistence) UpdateAttempt(a gizmos.AttemptSnapshot) error {
	return p.submit(persistJob{op: opUpdateAttempt, att: a}).err
}

func (p *Persistence) InsertResponse(r *gizmos.Response) error {
	return p.submit(persistJob{op: opInsertResponse, resp: r}).err
}

func (p *Persistence) InsertCos(c *gizmos.CoS) error {
	return p.submit(persistJob{op: opInsertCos, cos: c}).err
}

/*
	ExportCSV writes one CSV file per table (cos, requests, attempts,
	responses) to the working directory. When simulation is active the
	filename carries the node's primary IP, per the external interfaces
	design.
*/
func (p *Persistence) ExportCSV(reqId string) ([]string, error) {
	res := p.submit(persistJob{op: opExportCSV, req: gizmos.RequestSnapshot{Id: reqId}})
	return res.files, res.err
}

func (p *Persistence) exportAll(reqId string) ([]string, error) {
	tables := []string{"cos", "requests", "attempts", "responses"}
	suffix := ""
	if p.cfg.SimulationActive {
		suffix = "_" + p.cfg.LocalIP
	}

	var files []string
	for _, table := range tables {
		fname := fmt.Sprintf("%s%s.csv", table, suffix)
		if err := p.exportTable(table, fname); err != nil {
			return files, errors.Wrapf(err, "persist: export %s", table)
		}
		files = append(files, fname)
	}
	return files, nil
}

func (p *Persistence) exportTable(table string, fname string) error {
	rows, err := p.db.Query("SELECT * FROM " + table)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write(cols); err != nil {
		return err
	}

	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = formatCSVValue(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func formatCSVValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

/*
	DB exposes the underlying handle for the registry's startup preseed
	query; the node's startup cos table load reads the same handle
	directly. All other access goes through the worker via submit.
*/
func (p *Persistence) DB() *sql.DB {
	return p.db
}

func (p *Persistence) Close() error {
	close(p.jobs)
	return p.db.Close()
}
