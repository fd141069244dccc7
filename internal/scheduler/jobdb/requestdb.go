package jobdb

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/armadaproject/energysched/internal/common/logctx"
	"github.com/armadaproject/energysched/internal/common/schederrors"
	"github.com/armadaproject/energysched/internal/scheduler/internaltypes"
)

const (
	requestsTable = "requests"
	idIndex       = "id"     // index for looking up requests by id
	seqIndex      = "seq"    // index for iterating over requests in creation order
	statusIndex   = "status" // index for iterating over requests with a given status in creation order
)

// RequestTable stores every request seen by a resource manager and assigns their sequence numbers.
// RequestTable is implemented on top of https://github.com/hashicorp/go-memdb.
// Stored requests must only change status through Transition, since the status is indexed.
type RequestTable struct {
	db      *memdb.MemDB
	nextSeq int64
}

func NewRequestTable() (*RequestTable, error) {
	db, err := memdb.NewMemDB(requestTableSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &RequestTable{db: db}, nil
}

// NewRequest creates a request with a fresh id and the next sequence number, and stores it.
func (t *RequestTable) NewRequest(app string, arrival, deadline float64, mappings []*internaltypes.CanonicalMapping) (*JobRequest, error) {
	t.nextSeq++
	req := NewJobRequest(uuid.NewString(), t.nextSeq, app, arrival, deadline, mappings)
	if err := t.Upsert(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Upsert stores the given requests, replacing any request with the same id.
// Requests passed to this function must not subsequently be modified except through Transition.
func (t *RequestTable) Upsert(requests ...*JobRequest) error {
	txn := t.db.Txn(true)
	defer txn.Abort()
	for _, req := range requests {
		if err := txn.Insert(requestsTable, req); err != nil {
			return errors.WithStack(err)
		}
		if req.Seq > t.nextSeq {
			t.nextSeq = req.Seq
		}
	}
	txn.Commit()
	return nil
}

// Get returns the request with the given id or nil if no such request exists.
func (t *RequestTable) Get(id string) (*JobRequest, error) {
	txn := t.db.Txn(false)
	obj, err := txn.First(requestsTable, idIndex, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, nil
	}
	return obj.(*JobRequest), nil
}

// Transition moves a stored request to a new status. Illegal transitions panic.
func (t *RequestTable) Transition(ctx *logctx.Context, req *JobRequest, to RequestStatus) error {
	txn := t.db.Txn(true)
	defer txn.Abort()
	if err := txn.Delete(requestsTable, req); err != nil {
		if errors.Is(err, memdb.ErrNotFound) {
			return errors.WithStack(&schederrors.ErrNotFound{Type: "request", Value: req.Id})
		}
		return errors.WithStack(err)
	}
	req.transition(ctx, to)
	if err := txn.Insert(requestsTable, req); err != nil {
		return errors.WithStack(err)
	}
	txn.Commit()
	return nil
}

// All returns every stored request in Seq order.
func (t *RequestTable) All() ([]*JobRequest, error) {
	txn := t.db.Txn(false)
	it, err := txn.Get(requestsTable, seqIndex)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return collect(it), nil
}

// WithStatus returns the stored requests with the given status in Seq order.
func (t *RequestTable) WithStatus(status RequestStatus) ([]*JobRequest, error) {
	txn := t.db.Txn(false)
	it, err := txn.Get(requestsTable, statusIndex+"_prefix", status)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return collect(it), nil
}

// CountByStatus returns the number of stored requests per status.
func (t *RequestTable) CountByStatus() (map[RequestStatus]int, error) {
	all, err := t.All()
	if err != nil {
		return nil, err
	}
	rv := make(map[RequestStatus]int)
	for _, req := range all {
		rv[req.Status()]++
	}
	return rv, nil
}

// EvictTerminated removes every refused or finished request and returns how many were removed.
func (t *RequestTable) EvictTerminated() (int, error) {
	txn := t.db.Txn(true)
	defer txn.Abort()
	n := 0
	for _, status := range []RequestStatus{Refused, Finished} {
		deleted, err := txn.DeleteAll(requestsTable, statusIndex+"_prefix", status)
		if err != nil {
			return 0, errors.WithStack(err)
		}
		n += deleted
	}
	txn.Commit()
	return n, nil
}

func (t *RequestTable) Len() int {
	all, err := t.All()
	schederrors.PanicOnError(err)
	return len(all)
}

func collect(it memdb.ResultIterator) []*JobRequest {
	var rv []*JobRequest
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rv = append(rv, obj.(*JobRequest))
	}
	return rv
}

// seqIndexer indexes JobRequest.Seq with an order-preserving encoding.
type seqIndexer struct{}

func (seqIndexer) FromObject(obj interface{}) (bool, []byte, error) {
	req, ok := obj.(*JobRequest)
	if !ok {
		return false, nil, fmt.Errorf("expected type *JobRequest but got %v", reflect.TypeOf(obj))
	}
	return true, encodeInt(req.Seq), nil
}

func (seqIndexer) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	seq, ok := args[0].(int64)
	if !ok {
		return nil, fmt.Errorf("argument must be an int64: %#v", args[0])
	}
	return encodeInt(seq), nil
}

// statusIndexer indexes the status of a JobRequest.
type statusIndexer struct{}

func (statusIndexer) FromObject(obj interface{}) (bool, []byte, error) {
	req, ok := obj.(*JobRequest)
	if !ok {
		return false, nil, fmt.Errorf("expected type *JobRequest but got %v", reflect.TypeOf(obj))
	}
	return true, []byte{byte(req.status)}, nil
}

func (statusIndexer) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("must provide only a single argument")
	}
	status, ok := args[0].(RequestStatus)
	if !ok {
		return nil, fmt.Errorf("argument must be a RequestStatus: %#v", args[0])
	}
	return []byte{byte(status)}, nil
}

// PrefixFromArgs lets the status be the last argument of a prefix scan over the compound status index.
func (s statusIndexer) PrefixFromArgs(args ...interface{}) ([]byte, error) {
	return s.FromArgs(args...)
}

func encodeInt(val int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(val)^(1<<63))
	return buf
}

func requestTableSchema() *memdb.DBSchema {
	indexes := make(map[string]*memdb.IndexSchema)
	indexes[idIndex] = &memdb.IndexSchema{
		Name:    idIndex, // lookup by primary key
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "Id"},
	}
	indexes[seqIndex] = &memdb.IndexSchema{
		Name:    seqIndex,
		Unique:  true,
		Indexer: seqIndexer{},
	}
	indexes[statusIndex] = &memdb.IndexSchema{
		Name:   statusIndex,
		Unique: true,
		Indexer: &memdb.CompoundIndex{
			Indexes: []memdb.Indexer{
				statusIndexer{},
				seqIndexer{},
			},
		},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			requestsTable: {
				Name:    requestsTable,
				Indexes: indexes,
			},
		},
	}
}
