package integration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/arena/contracts/wager"
	"go.dedis.ch/arena/core/execution/native"
	"go.dedis.ch/arena/core/store/kv"
	"go.dedis.ch/arena/core/txn"
	"go.dedis.ch/arena/core/txn/signed"
	"go.dedis.ch/arena/crypto/ed25519"
	"go.dedis.ch/arena/decrypt"
	"go.dedis.ch/arena/decrypt/client"
	"go.dedis.ch/arena/decrypt/oracle"
	"go.dedis.ch/arena/fhe/shadow"
	"go.dedis.ch/arena/ledger"
)

var instance = []byte("go.dedis.ch/arena#test")

// Runs the full scenario of one account: registration, a game and the
// decryption of the outcome through the authorization protocol.
func TestWager_Scenario(t *testing.T) {
	db, err := kv.New(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)

	defer db.Close()

	cop := shadow.NewShadow(instance, wager.GuessRange)

	exec := native.NewExecution()
	exec.Set(wager.ContractName, wager.NewContract(cop))

	srvc, err := ledger.NewService(db, exec)
	require.NoError(t, err)

	signer := ed25519.NewSigner()
	ident := signer.GetPublicKey()
	mgr := signed.NewManager(signer)

	// 1. Register the account.
	tx, err := mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdRegister)},
	)
	require.NoError(t, err)
	require.NoError(t, srvc.Process(tx))

	// Registering twice is rejected.
	tx, err = mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdRegister)},
	)
	require.NoError(t, err)
	require.EqualError(t, srvc.Process(tx),
		"transaction rejected: failed to REGISTER: player already registered")

	// 2. Play one game with an encrypted guess.
	guess, proof, err := cop.Input(99, ident)
	require.NoError(t, err)

	tx, err = mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdPlay)},
		txn.Arg{Key: wager.GuessArg, Value: guess.Bytes()},
		txn.Arg{Key: wager.ProofArg, Value: proof},
	)
	require.NoError(t, err)
	require.NoError(t, srvc.Process(tx))

	games, err := wager.GetGamesPlayed(srvc.GetStore(), ident)
	require.NoError(t, err)
	require.Equal(t, uint64(1), games)

	// Re-submitting the captured transaction does not play a second game:
	// its nonce has been consumed by the first commit.
	require.EqualError(t, srvc.Process(tx),
		"transaction refused: nonce is invalid, expected 3, got 2")

	games, err = wager.GetGamesPlayed(srvc.GetStore(), ident)
	require.NoError(t, err)
	require.Equal(t, uint64(1), games)

	// 3. Reveal the outcome through the decryption protocol.
	orc := oracle.NewService(instance, srvc.GetStore(), cop)

	session, err := client.NewSession(signer, [][]byte{instance},
		time.Now(), time.Minute)
	require.NoError(t, err)

	balance, err := wager.GetBalance(srvc.GetStore(), ident)
	require.NoError(t, err)

	record, err := wager.GetLastGame(srvc.GetStore(), ident)
	require.NoError(t, err)
	require.True(t, record.Exists)

	results, err := session.Decrypt(orc,
		decrypt.Pair{Handle: balance, Instance: instance},
		decrypt.Pair{Handle: record.Guess, Instance: instance},
		decrypt.Pair{Handle: record.Draw, Instance: instance},
		decrypt.Pair{Handle: record.Won, Instance: instance},
	)
	require.NoError(t, err)

	require.Equal(t, uint64(99), results[record.Guess])
	require.Less(t, results[record.Draw], uint64(wager.GuessRange))

	if results[record.Won] == 1 {
		require.Equal(t, uint64(99), results[record.Draw])
		require.Equal(t, uint64(110), results[balance])
	} else {
		require.Equal(t, uint64(0), results[record.Won])
		require.NotEqual(t, uint64(99), results[record.Draw])
		require.Equal(t, uint64(90), results[balance])
	}

	// 4. Another account cannot reveal those handles.
	intruder := ed25519.NewSigner()

	stolen, err := client.NewSession(intruder, [][]byte{instance},
		time.Now(), time.Minute)
	require.NoError(t, err)

	_, err = stolen.Decrypt(orc, decrypt.Pair{Handle: balance, Instance: instance})
	require.ErrorContains(t, err, "access denied: not authorized to decrypt")
}

// An account that never registered cannot play, and its queries return the
// placeholder values without involving the decryption protocol.
func TestWager_UnregisteredAccount(t *testing.T) {
	db, err := kv.New(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)

	defer db.Close()

	cop := shadow.NewShadow(instance, wager.GuessRange)

	exec := native.NewExecution()
	exec.Set(wager.ContractName, wager.NewContract(cop))

	srvc, err := ledger.NewService(db, exec)
	require.NoError(t, err)

	signer := ed25519.NewSigner()
	ident := signer.GetPublicKey()
	mgr := signed.NewManager(signer)

	guess, proof, err := cop.Input(7, ident)
	require.NoError(t, err)

	tx, err := mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdPlay)},
		txn.Arg{Key: wager.GuessArg, Value: guess.Bytes()},
		txn.Arg{Key: wager.ProofArg, Value: proof},
	)
	require.NoError(t, err)
	require.EqualError(t, srvc.Process(tx),
		"transaction rejected: failed to PLAY: player not registered")

	balance, err := wager.GetBalance(srvc.GetStore(), ident)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	session, err := client.NewSession(signer, [][]byte{instance},
		time.Now(), time.Minute)
	require.NoError(t, err)

	orc := oracle.NewService(instance, srvc.GetStore(), cop)

	// The placeholder balance reads as zero without contacting the oracle.
	value, err := session.DecryptOne(orc, balance, instance)
	require.NoError(t, err)
	require.Equal(t, uint64(0), value)
}
