// Package client implements the client side of the decryption authorization
// protocol.
//
// A session owns a fresh ephemeral key pair and a grant signed by the
// account's long-lived identity key. The session can decrypt any handle the
// account is granted on, for as long as the grant validity window lasts.
// The ephemeral private key never leaves the session.
package client

import (
	"time"

	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/decrypt"
	"go.dedis.ch/arena/fhe"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

var suite = suites.MustFind("Ed25519")

// Session is one decryption session of an account.
type Session struct {
	ephemeral *key.Pair
	grant     decrypt.Grant
}

// NewSession generates the ephemeral key pair and signs the grant for the
// scope and the validity window.
func NewSession(signer crypto.Signer, scope [][]byte,
	validFrom time.Time, duration time.Duration) (*Session, error) {

	ephemeral := key.NewKeyPair(suite)

	grant := decrypt.Grant{
		Ephemeral: ephemeral.Public,
		Scope:     scope,
		ValidFrom: validFrom,
		Duration:  duration,
		Signer:    signer.GetPublicKey(),
	}

	digest, err := grant.Digest()
	if err != nil {
		return nil, xerrors.Errorf("couldn't make grant digest: %v", err)
	}

	grant.Signature, err = signer.Sign(digest)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign grant: %v", err)
	}

	session := &Session{
		ephemeral: ephemeral,
		grant:     grant,
	}

	return session, nil
}

// GetGrant returns the grant of the session.
func (s *Session) GetGrant() decrypt.Grant {
	return s.grant
}

// Decrypt reveals the plaintexts behind the handles. Placeholder handles
// are short-circuited to the plaintext zero without contacting the oracle:
// they carry no ciphertext and the oracle would reject them.
func (s *Session) Decrypt(orc decrypt.Oracle, pairs ...decrypt.Pair) (map[fhe.Handle]uint64, error) {
	results := make(map[fhe.Handle]uint64)

	ask := make([]decrypt.Pair, 0, len(pairs))

	for _, pair := range pairs {
		if pair.Handle.IsZero() {
			results[pair.Handle] = 0
			continue
		}

		ask = append(ask, pair)
	}

	if len(ask) == 0 {
		return results, nil
	}

	resp, err := orc.HandleRequest(decrypt.Request{
		Pairs: ask,
		Grant: s.grant,
	})
	if err != nil {
		return nil, xerrors.Errorf("oracle refused the request: %v", err)
	}

	for _, pair := range ask {
		sealed, ok := resp.Plaintexts[pair.Handle]
		if !ok {
			return nil, xerrors.Errorf("missing plaintext for %v", pair.Handle)
		}

		value, err := sealed.Open(s.ephemeral.Private)
		if err != nil {
			return nil, xerrors.Errorf("couldn't open plaintext: %v", err)
		}

		results[pair.Handle] = value
	}

	return results, nil
}

// DecryptOne reveals the plaintext behind a single handle.
func (s *Session) DecryptOne(orc decrypt.Oracle, h fhe.Handle, instance []byte) (uint64, error) {
	results, err := s.Decrypt(orc, decrypt.Pair{Handle: h, Instance: instance})
	if err != nil {
		return 0, err
	}

	return results[h], nil
}
