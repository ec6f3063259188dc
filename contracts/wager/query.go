package wager

import (
	"encoding/binary"

	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/crypto"
	"go.dedis.ch/arena/fhe"
	"golang.org/x/xerrors"
)

// GameRecord is the latest game of an account. When Exists is false the
// handles are placeholders: they carry no ciphertext and must be treated as
// the plaintext zero without involving the decryption protocol.
type GameRecord struct {
	Guess  fhe.Handle
	Draw   fhe.Handle
	Won    fhe.Handle
	Exists bool
}

// IsRegistered returns true when the identity has registered an account.
func IsRegistered(r store.Readable, ident crypto.PublicKey) (bool, error) {
	id, err := ident.MarshalBinary()
	if err != nil {
		return false, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	registered, err := readFlag(r, registeredKey(id))
	if err != nil {
		return false, xerrors.Errorf("couldn't read account: %v", err)
	}

	return registered, nil
}

// GetBalance returns the handle of the encrypted balance of the account, or
// the placeholder handle when the account does not exist.
func GetBalance(r store.Readable, ident crypto.PublicKey) (fhe.Handle, error) {
	id, err := ident.MarshalBinary()
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	value, err := r.Get(balanceKey(id))
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't read balance: %v", err)
	}

	if len(value) == 0 {
		return fhe.Handle{}, nil
	}

	h, err := fhe.NewHandle(value)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("malformed balance: %v", err)
	}

	return h, nil
}

// GetGamesPlayed returns the number of games played by the account.
func GetGamesPlayed(r store.Readable, ident crypto.PublicKey) (uint64, error) {
	id, err := ident.MarshalBinary()
	if err != nil {
		return 0, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	games, err := readCounter(r, gamesKey(id))
	if err != nil {
		return 0, xerrors.Errorf("couldn't read play counter: %v", err)
	}

	return games, nil
}

// GetLastGame returns the latest game of the account. Exists is false when
// the account never played, in which case the handles are placeholders.
func GetLastGame(r store.Readable, ident crypto.PublicKey) (GameRecord, error) {
	id, err := ident.MarshalBinary()
	if err != nil {
		return GameRecord{}, xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	value, err := r.Get(lastGameKey(id))
	if err != nil {
		return GameRecord{}, xerrors.Errorf("couldn't read record: %v", err)
	}

	if len(value) == 0 {
		return GameRecord{}, nil
	}

	if len(value) != 3*fhe.HandleLen+1 {
		return GameRecord{}, xerrors.Errorf("malformed record of %d bytes", len(value))
	}

	rec := GameRecord{
		Exists: value[3*fhe.HandleLen] == 1,
	}

	copy(rec.Guess[:], value[:fhe.HandleLen])
	copy(rec.Draw[:], value[fhe.HandleLen:2*fhe.HandleLen])
	copy(rec.Won[:], value[2*fhe.HandleLen:3*fhe.HandleLen])

	return rec, nil
}

func registeredKey(id []byte) []byte {
	return accountKey(id, "reg")
}

func balanceKey(id []byte) []byte {
	return accountKey(id, "balance")
}

func gamesKey(id []byte) []byte {
	return accountKey(id, "games")
}

func lastGameKey(id []byte) []byte {
	return accountKey(id, "last")
}

func accountKey(id []byte, field string) []byte {
	key := make([]byte, 0, 6+len(id)+1+len(field))
	key = append(key, []byte("acct:")...)
	key = append(key, id...)
	key = append(key, ':')
	key = append(key, []byte(field)...)

	return key
}

func readFlag(r store.Readable, key []byte) (bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return false, err
	}

	return len(value) > 0 && value[0] == 1, nil
}

func readHandle(r store.Readable, key []byte) (fhe.Handle, error) {
	value, err := r.Get(key)
	if err != nil {
		return fhe.Handle{}, err
	}

	h, err := fhe.NewHandle(value)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("malformed handle: %v", err)
	}

	return h, nil
}

func readCounter(r store.Readable, key []byte) (uint64, error) {
	value, err := r.Get(key)
	if err != nil {
		return 0, err
	}

	if len(value) != 8 {
		return 0, nil
	}

	return binary.BigEndian.Uint64(value), nil
}
