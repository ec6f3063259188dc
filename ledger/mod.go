// Package ledger implements the single-node ordering service of the
// wagering ledger.
//
// The service models the execution guarantee of the host ledger: mutating
// operations are applied one at a time, in submission order, durably and
// atomically. A transaction must carry the successor of the last committed
// nonce of its identity, so the operations of one account are totally
// ordered and a captured transaction cannot be replayed. Each transaction
// is executed on a staging snapshot layered
// over the current state, so that a failure anywhere in the execution
// leaves the state untouched. On success the delta is written to the
// database in a single transaction before the state becomes visible to
// readers.
package ledger

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"go.dedis.ch/arena"
	"go.dedis.ch/arena/core"
	"go.dedis.ch/arena/core/execution"
	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/core/store/kv"
	"go.dedis.ch/arena/core/store/mem"
	"go.dedis.ch/arena/core/txn"
	"golang.org/x/xerrors"
)

// sizes of the watcher buffer before events are dropped.
const watchBufferSize = 100

var bucketState = []byte("state")

// prefixNonce is the state prefix of the per-identity transaction nonces.
var prefixNonce = []byte("nonce:")

// defines prometheus metrics
var (
	promAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_ledger_transactions_accepted_total",
		Help: "total number of accepted transactions",
	})

	promRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_ledger_transactions_rejected_total",
		Help: "total number of rejected transactions",
	})
)

func init() {
	arena.PromCollectors = append(arena.PromCollectors, promAccepted, promRejected)
}

// Event is the notification sent to the observers when an operation has
// been committed. It carries only the transaction and an opaque operation
// identifier, never a plaintext.
type Event struct {
	ID          string
	Transaction txn.Transaction
}

// verifiable is implemented by transactions carrying a signature.
type verifiable interface {
	Verify() error
}

// Service is a single-node ordering service.
type Service struct {
	sync.RWMutex

	db      kv.DB
	exec    execution.Service
	state   *mem.Snapshot
	watcher core.Observable
}

// NewService creates a ledger service that executes the transactions with
// the given execution service and persists the state in the database. The
// state previously persisted is reloaded.
func NewService(db kv.DB, exec execution.Service) (*Service, error) {
	state := mem.NewSnapshot()

	err := db.Update(bucketState, func(bucket kv.Bucket) error {
		return bucket.ForEach(func(k, v []byte) error {
			return state.Set(k, v)
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to load state: %v", err)
	}

	srvc := &Service{
		db:      db,
		exec:    exec,
		state:   state,
		watcher: core.NewWatcher(),
	}

	return srvc, nil
}

// Process applies the transaction to the ledger. It returns an error when
// the transaction has been rejected or when the commit failed, in which
// case the state is left untouched.
func (s *Service) Process(tx txn.Transaction) error {
	v, ok := tx.(verifiable)
	if !ok {
		promRejected.Inc()

		return xerrors.New("refusing unsigned transaction")
	}

	err := v.Verify()
	if err != nil {
		promRejected.Inc()

		return xerrors.Errorf("transaction refused: %v", err)
	}

	s.Lock()
	defer s.Unlock()

	staging := mem.NewStaging(s.state)

	err = s.advanceNonce(staging, tx)
	if err != nil {
		promRejected.Inc()

		return xerrors.Errorf("transaction refused: %v", err)
	}

	res, err := s.exec.Execute(staging, execution.Step{Current: tx})
	if err != nil {
		return xerrors.Errorf("failed to execute transaction: %v", err)
	}

	if !res.Accepted {
		promRejected.Inc()

		// The transaction is ordered even though it is rejected: its nonce
		// is consumed so the same submission cannot be retried verbatim.
		consumed := mem.NewStaging(s.state)

		err = s.advanceNonce(consumed, tx)
		if err == nil {
			err = s.commit(consumed)
		}

		if err != nil {
			return xerrors.Errorf("failed to consume nonce: %v", err)
		}

		return xerrors.Errorf("transaction rejected: %s", res.Message)
	}

	err = s.commit(staging)
	if err != nil {
		return xerrors.Errorf("failed to commit: %v", err)
	}

	promAccepted.Inc()

	event := Event{
		ID:          xid.New().String(),
		Transaction: tx,
	}

	arena.Logger.Debug().
		Str("operation", event.ID).
		Msg("transaction committed")

	s.watcher.Notify(event)

	return nil
}

// GetStore returns a read-only view of the committed state. The view is
// safe for concurrent use with Process.
func (s *Service) GetStore() store.Readable {
	return readerView{srvc: s}
}

// Watch returns a channel populated with the committed operations until the
// context is done.
func (s *Service) Watch(ctx context.Context) <-chan Event {
	obs := observer{ch: make(chan Event, watchBufferSize)}

	s.watcher.Add(obs)

	go func() {
		<-ctx.Done()
		s.watcher.Remove(obs)
		close(obs.ch)
	}()

	return obs.ch
}

// advanceNonce checks that the transaction carries the successor of the last
// committed nonce of the identity, so that a captured transaction can never
// be replayed. The new nonce is written into the staging snapshot and
// becomes durable with whatever the caller commits. The caller must hold
// the lock.
func (s *Service) advanceNonce(staging *mem.Snapshot, tx txn.Transaction) error {
	identity, err := tx.GetIdentity().MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	key := make([]byte, 0, len(prefixNonce)+len(identity))
	key = append(key, prefixNonce...)
	key = append(key, identity...)

	value, err := s.state.Get(key)
	if err != nil {
		return xerrors.Errorf("couldn't read nonce: %v", err)
	}

	expected := uint64(0)
	if len(value) == 8 {
		expected = binary.BigEndian.Uint64(value)
	}

	if tx.GetNonce() != expected {
		return xerrors.Errorf("nonce is invalid, expected %d, got %d",
			expected, tx.GetNonce())
	}

	err = staging.Set(key, binary.BigEndian.AppendUint64(nil, expected+1))
	if err != nil {
		return xerrors.Errorf("couldn't set nonce: %v", err)
	}

	return nil
}

// commit writes the staged delta in a single database transaction and then
// makes it visible to the readers. The caller must hold the lock.
func (s *Service) commit(staging *mem.Snapshot) error {
	err := s.db.Update(bucketState, func(bucket kv.Bucket) error {
		err := staging.ForEachUpdate(bucket.Set)
		if err != nil {
			return xerrors.Errorf("failed to write update: %v", err)
		}

		err = staging.ForEachDelete(bucket.Delete)
		if err != nil {
			return xerrors.Errorf("failed to write delete: %v", err)
		}

		return nil
	})
	if err != nil {
		return xerrors.Errorf("database failed: %v", err)
	}

	// The database transaction succeeded so the in-memory state can only
	// diverge on a programming error.
	staging.ForEachUpdate(s.state.Set)
	staging.ForEachDelete(s.state.Delete)

	return nil
}

// readerView is a thread-safe read-only view of the service state.
//
// - implements store.Readable
type readerView struct {
	srvc *Service
}

// Get implements store.Readable. It returns the committed value of the key.
func (r readerView) Get(key []byte) ([]byte, error) {
	r.srvc.RLock()
	defer r.srvc.RUnlock()

	return r.srvc.state.Get(key)
}

// observer forwards the events to a channel and drops them when the channel
// is full.
//
// - implements core.Observer
type observer struct {
	ch chan Event
}

// NotifyCallback implements core.Observer.
func (o observer) NotifyCallback(event interface{}) {
	evt, ok := event.(Event)
	if !ok {
		return
	}

	select {
	case o.ch <- evt:
	default:
		arena.Logger.Warn().Msg("watcher channel full, dropping event")
	}
}
