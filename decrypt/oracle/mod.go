// Package oracle implements the decryption oracle of one ledger instance.
//
// The oracle is stateless beyond its read-only view of the ledger: it
// checks the authorization grant and the access-control entries, decrypts
// the authorized handles through the coprocessor and seals the plaintexts
// under the session key. It never mutates the ledger, so requests can be
// retried freely.
package oracle

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/arena"
	"go.dedis.ch/arena/acl"
	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/decrypt"
	"go.dedis.ch/arena/fhe"
	"golang.org/x/xerrors"
)

// defines prometheus metrics
var (
	promRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_oracle_requests_total",
		Help: "total number of decryption requests",
	})

	promDenied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_oracle_denied_total",
		Help: "total number of denied decryption requests",
	})
)

func init() {
	arena.PromCollectors = append(arena.PromCollectors, promRequests, promDenied)
}

// Service serves the decryption requests of one ledger instance.
//
// - implements decrypt.Oracle
type Service struct {
	instance []byte
	state    store.Readable
	table    acl.Table
	dec      fhe.Decrypter
	clock    func() time.Time
}

// ServiceOption is the type of options to create a service.
type ServiceOption func(*Service)

// WithClock is an option to set the clock used to enforce the validity
// window of the grants.
func WithClock(clock func() time.Time) ServiceOption {
	return func(srvc *Service) {
		srvc.clock = clock
	}
}

// NewService creates an oracle for the ledger instance, reading the
// access-control entries from the state and decrypting through the
// decrypter.
func NewService(instance []byte, state store.Readable, dec fhe.Decrypter, opts ...ServiceOption) *Service {
	srvc := &Service{
		instance: append([]byte{}, instance...),
		state:    state,
		table:    acl.NewTable(),
		dec:      dec,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(srvc)
	}

	return srvc
}

// HandleRequest implements decrypt.Oracle. It answers the request when the
// grant and the access-control entries authorize every pair, otherwise no
// plaintext is revealed at all.
func (srvc *Service) HandleRequest(req decrypt.Request) (decrypt.Response, error) {
	promRequests.Inc()

	err := srvc.verifyGrant(req.Grant)
	if err != nil {
		promDenied.Inc()

		return decrypt.Response{}, err
	}

	resp := decrypt.Response{
		Plaintexts: make(map[fhe.Handle]decrypt.Ciphertext),
	}

	for _, pair := range req.Pairs {
		err := srvc.authorize(req.Grant, pair)
		if err != nil {
			promDenied.Inc()

			return decrypt.Response{}, err
		}

		value, err := srvc.dec.Decrypt(pair.Handle)
		if err != nil {
			return decrypt.Response{}, xerrors.Errorf("failed to decrypt: %v", err)
		}

		sealed, err := decrypt.Seal(req.Grant.Ephemeral, value)
		if err != nil {
			return decrypt.Response{}, xerrors.Errorf("failed to seal: %v", err)
		}

		resp.Plaintexts[pair.Handle] = sealed
	}

	arena.Logger.Debug().
		Int("handles", len(req.Pairs)).
		Msg("decryption request served")

	return resp, nil
}

// verifyGrant checks the validity window and the signature of the grant.
func (srvc *Service) verifyGrant(grant decrypt.Grant) error {
	if grant.Signer == nil {
		return xerrors.New("invalid authorization: missing signer")
	}

	now := srvc.clock()

	if now.Before(grant.ValidFrom) {
		return xerrors.New("invalid authorization: grant not yet valid")
	}

	if now.After(grant.ValidFrom.Add(grant.Duration)) {
		return xerrors.New("invalid authorization: grant expired")
	}

	digest, err := grant.Digest()
	if err != nil {
		return xerrors.Errorf("invalid authorization: %v", err)
	}

	err = grant.Signer.Verify(digest, grant.Signature)
	if err != nil {
		return xerrors.Errorf("invalid authorization: %v", err)
	}

	return nil
}

// authorize checks that the pair targets this instance, that the grant
// scope contains it and that the signer owns an access-control entry for
// the handle.
func (srvc *Service) authorize(grant decrypt.Grant, pair decrypt.Pair) error {
	if !bytes.Equal(pair.Instance, srvc.instance) {
		return xerrors.Errorf("unknown ledger instance '%x'", pair.Instance)
	}

	if !grant.InScope(pair.Instance) {
		return xerrors.New("invalid authorization: instance out of scope")
	}

	if pair.Handle.IsZero() {
		return xerrors.New("access denied: placeholder handle")
	}

	granted, err := srvc.table.IsGranted(srvc.state, pair.Handle, grant.Signer)
	if err != nil {
		return xerrors.Errorf("failed to read access-control entry: %v", err)
	}

	if !granted {
		return xerrors.Errorf("access denied: not authorized to decrypt %v", pair.Handle)
	}

	return nil
}
