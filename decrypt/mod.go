// Package decrypt defines the messages of the decryption authorization
// protocol.
//
// The protocol is entirely off-ledger. The owner of a ciphertext handle
// produces a grant: a domain-separated, time-bounded message signed with
// the long-lived identity key, binding a fresh ephemeral session key and
// the set of ledger instances it applies to. The oracle validates the grant
// and the access-control entries, decrypts the authorized handles and
// returns the plaintexts sealed under the ephemeral key, so that only the
// session that created the grant can read them.
package decrypt

import (
	"bytes"
	"encoding/binary"
	"time"

	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/fhe"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// suite is the Kyber suite of the protocol.
var suite = suites.MustFind("Ed25519")

const (
	// ProtocolTag is the domain separation tag of the signed grant.
	ProtocolTag = "go.dedis.ch/arena/decrypt"

	// ProtocolVersion is the version of the protocol included in the signed
	// message so that a grant cannot be replayed against a different
	// version.
	ProtocolVersion = 1
)

// Grant is the bearer capability of one decryption session. It can be
// reused for several handles within its validity window but never across
// accounts: the signature binds it to the signer identity.
type Grant struct {
	// Ephemeral is the session public key under which the oracle seals the
	// plaintexts.
	Ephemeral kyber.Point

	// Scope is the set of ledger instances the grant applies to.
	Scope [][]byte

	// ValidFrom is the start of the validity window.
	ValidFrom time.Time

	// Duration is the length of the validity window.
	Duration time.Duration

	// Signer is the identity of the account owning the handles.
	Signer crypto.PublicKey

	// Signature is the Schnorr signature of the grant digest by the signer.
	Signature []byte
}

// Digest computes the domain-separated digest covered by the grant
// signature.
func (g Grant) Digest() ([]byte, error) {
	if g.Ephemeral == nil || g.Signer == nil {
		return nil, xerrors.New("incomplete grant")
	}

	h := crypto.NewSha256Factory().New()

	h.Write([]byte(ProtocolTag))

	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, ProtocolVersion)
	h.Write(buffer)

	_, err := g.Ephemeral.MarshalTo(h)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal ephemeral key: %v", err)
	}

	signer, err := g.Signer.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal signer: %v", err)
	}

	h.Write(signer)

	binary.BigEndian.PutUint64(buffer, uint64(len(g.Scope)))
	h.Write(buffer)

	for _, instance := range g.Scope {
		binary.BigEndian.PutUint64(buffer, uint64(len(instance)))
		h.Write(buffer)
		h.Write(instance)
	}

	binary.BigEndian.PutUint64(buffer, uint64(g.ValidFrom.Unix()))
	h.Write(buffer)

	binary.BigEndian.PutUint64(buffer, uint64(g.Duration/time.Second))
	h.Write(buffer)

	return h.Sum(nil), nil
}

// InScope returns true when the ledger instance is part of the grant scope.
func (g Grant) InScope(instance []byte) bool {
	for _, scoped := range g.Scope {
		if bytes.Equal(scoped, instance) {
			return true
		}
	}

	return false
}

// Pair designates one handle of one ledger instance to decrypt.
type Pair struct {
	Handle   fhe.Handle
	Instance []byte
}

// Request is the message sent to the oracle.
type Request struct {
	Pairs []Pair
	Grant Grant
}

// Ciphertext is one plaintext sealed under the ephemeral session key with
// ElGamal. K is the ephemeral DH public key of the sealing and C the
// blinded value.
type Ciphertext struct {
	K kyber.Point
	C kyber.Point
}

// Response maps every requested handle to its sealed plaintext.
type Response struct {
	Plaintexts map[fhe.Handle]Ciphertext
}

// Oracle is the interface of the decryption oracle network. Requests are
// stateless, side-effect-free and can be retried freely.
type Oracle interface {
	HandleRequest(req Request) (Response, error)
}

// Seal encrypts the value for the session public key.
func Seal(pub kyber.Point, value uint64) (Ciphertext, error) {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, value)

	// Embed the value into a curve point, then ElGamal-encrypt the point to
	// produce the ciphertext (K, C).
	M := suite.Point().Embed(buffer, random.New())

	k := suite.Scalar().Pick(random.New())
	K := suite.Point().Mul(k, nil)
	S := suite.Point().Mul(k, pub)
	C := S.Add(S, M)

	return Ciphertext{K: K, C: C}, nil
}

// Open decrypts the sealed value with the session private key.
func (ct Ciphertext) Open(secret kyber.Scalar) (uint64, error) {
	if ct.K == nil || ct.C == nil {
		return 0, xerrors.New("empty ciphertext")
	}

	S := suite.Point().Mul(secret, ct.K)
	M := suite.Point().Sub(ct.C, S)

	data, err := M.Data()
	if err != nil {
		return 0, xerrors.Errorf("couldn't extract data: %v", err)
	}

	if len(data) != 8 {
		return 0, xerrors.Errorf("invalid plaintext of %d bytes", len(data))
	}

	return binary.BigEndian.Uint64(data), nil
}
