// Package wager implements the native contract of the confidential wagering
// game.
//
// An account registers once and receives an encrypted starting balance. It
// can then repeatedly stake a fixed amount on an encrypted guess against an
// encrypted house draw. The settlement runs entirely on ciphertext handles:
// the contract never sees a balance, a guess, a draw or an outcome in
// clear. Every handle exposed to the account gets an access-control grant
// so that the owner, and only the owner, can later request its decryption.
package wager

import (
	"encoding/binary"
	"fmt"

	"github.com/rs/xid"
	"go.dedis.ch/arena"
	"go.dedis.ch/arena/acl"
	"go.dedis.ch/arena/core/execution"
	"go.dedis.ch/arena/core/store"
	"go.dedis.ch/arena/fhe"
	"golang.org/x/xerrors"
)

// commands defines the commands of the wager contract. This interface helps
// in testing the contract.
type commands interface {
	register(snap store.Snapshot, step execution.Step) error
	play(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/arena.Wager"

	// CmdArg is the argument's name to indicate the kind of command we want
	// to run on the contract. Should be one of the Command type.
	CmdArg = "wager:command"

	// GuessArg is the argument's name in the transaction that contains the
	// ciphertext handle of the guess.
	GuessArg = "wager:guess"

	// ProofArg is the argument's name in the transaction that contains the
	// proof of correct encryption of the guess.
	ProofArg = "wager:proof"
)

// Command defines a type of command for the wager contract.
type Command string

const (
	// CmdRegister defines the command to register an account.
	CmdRegister Command = "REGISTER"

	// CmdPlay defines the command to play one game.
	CmdPlay Command = "PLAY"
)

// Game parameters. The guess and the draw share the domain [0, GuessRange).
const (
	// StartingBalance is the encrypted balance minted at registration.
	StartingBalance uint32 = 100

	// Stake is the amount debited on every game.
	Stake uint32 = 10

	// Reward is the amount credited when the guess matches the draw.
	Reward uint32 = 20

	// GuessRange is the exclusive upper bound of the guess and draw domain.
	GuessRange uint32 = 100
)

// Contract is the smart contract of the wagering game.
//
// - implements native.Contract
type Contract struct {
	// cop performs the homomorphic operations. No plaintext ever crosses
	// this boundary towards the contract.
	cop fhe.Coprocessor

	// table is the access-control ledger updated when a ciphertext is
	// exposed to an account.
	table acl.Table

	// cmd provides the commands that can be executed by this smart
	// contract.
	cmd commands
}

// NewContract creates a new wager contract using the given coprocessor.
func NewContract(cop fhe.Coprocessor) Contract {
	contract := Contract{
		cop:   cop,
		table: acl.NewTable(),
	}

	contract.cmd = wagerCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	if step.Current.GetIdentity() == nil {
		return xerrors.New("transaction has no identity")
	}

	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	switch Command(cmd) {
	case CmdRegister:
		err := c.cmd.register(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to REGISTER: %v", err)
		}
	case CmdPlay:
		err := c.cmd.play(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to PLAY: %v", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// wagerCommand implements the commands of the wager contract.
//
// - implements commands
type wagerCommand struct {
	*Contract
}

// register implements commands. It creates the account with the encrypted
// starting balance and grants the caller the right to decrypt it.
func (c wagerCommand) register(snap store.Snapshot, step execution.Step) error {
	ident := step.Current.GetIdentity()

	id, err := ident.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	registered, err := readFlag(snap, registeredKey(id))
	if err != nil {
		return xerrors.Errorf("couldn't read account: %v", err)
	}

	if registered {
		return xerrors.New("player already registered")
	}

	balance, err := c.cop.EncryptUint32(StartingBalance)
	if err != nil {
		return xerrors.Errorf("couldn't mint starting balance: %v", err)
	}

	err = c.table.Grant(snap, balance, ident)
	if err != nil {
		return xerrors.Errorf("couldn't grant balance: %v", err)
	}

	err = snap.Set(registeredKey(id), []byte{1})
	if err != nil {
		return xerrors.Errorf("couldn't set account: %v", err)
	}

	err = snap.Set(balanceKey(id), balance.Bytes())
	if err != nil {
		return xerrors.Errorf("couldn't set balance: %v", err)
	}

	err = snap.Set(gamesKey(id), make([]byte, 8))
	if err != nil {
		return xerrors.Errorf("couldn't set play counter: %v", err)
	}

	arena.Logger.Info().
		Str("contract", ContractName).
		Str("identity", fmt.Sprintf("%v", ident)).
		Msg("account registered")

	return nil
}

// play implements commands. It verifies the input proof of the guess, draws
// the encrypted house number, settles the game homomorphically and
// overwrites the single game record.
func (c wagerCommand) play(snap store.Snapshot, step execution.Step) error {
	ident := step.Current.GetIdentity()

	id, err := ident.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal identity: %v", err)
	}

	registered, err := readFlag(snap, registeredKey(id))
	if err != nil {
		return xerrors.Errorf("couldn't read account: %v", err)
	}

	if !registered {
		return xerrors.New("player not registered")
	}

	guess, err := fhe.NewHandle(step.Current.GetArg(GuessArg))
	if err != nil {
		return xerrors.Errorf("invalid guess handle: %v", err)
	}

	proof := step.Current.GetArg(ProofArg)
	if len(proof) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", ProofArg)
	}

	err = c.cop.VerifyInput(guess, proof, ident)
	if err != nil {
		return xerrors.Errorf("invalid input proof: %v", err)
	}

	games, err := readCounter(snap, gamesKey(id))
	if err != nil {
		return xerrors.Errorf("couldn't read play counter: %v", err)
	}

	// The salt makes the draw unique per account and per game so that two
	// plays never share a draw ciphertext identity.
	salt := make([]byte, 0, len(id)+8)
	salt = append(salt, id...)
	salt = binary.BigEndian.AppendUint64(salt, games)

	draw, err := c.cop.RandUint32(GuessRange, salt)
	if err != nil {
		return xerrors.Errorf("couldn't draw house number: %v", err)
	}

	won, err := c.cop.Eq(guess, draw)
	if err != nil {
		return xerrors.Errorf("couldn't compare guess: %v", err)
	}

	newBalance, err := c.settle(snap, id, won)
	if err != nil {
		return xerrors.Errorf("couldn't settle game: %v", err)
	}

	err = c.writeRecord(snap, id, record{guess: guess, draw: draw, won: won})
	if err != nil {
		return xerrors.Errorf("couldn't write game record: %v", err)
	}

	err = snap.Set(gamesKey(id), binary.BigEndian.AppendUint64(nil, games+1))
	if err != nil {
		return xerrors.Errorf("couldn't set play counter: %v", err)
	}

	for _, h := range []fhe.Handle{newBalance, guess, draw, won} {
		err = c.table.Grant(snap, h, ident)
		if err != nil {
			return xerrors.Errorf("couldn't grant handle: %v", err)
		}
	}

	arena.Logger.Info().
		Str("contract", ContractName).
		Str("identity", fmt.Sprintf("%v", ident)).
		Str("game", xid.New().String()).
		Msg("game played")

	return nil
}

// settle computes the new encrypted balance: the stake is always debited
// and the reward is credited when the win flag holds, without any clamping
// at zero.
func (c wagerCommand) settle(snap store.Snapshot, id []byte, won fhe.Handle) (fhe.Handle, error) {
	balance, err := readHandle(snap, balanceKey(id))
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't read balance: %v", err)
	}

	encStake, err := c.cop.EncryptUint32(Stake)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't encrypt stake: %v", err)
	}

	encReward, err := c.cop.EncryptUint32(Reward)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't encrypt reward: %v", err)
	}

	encZero, err := c.cop.EncryptUint32(0)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't encrypt zero: %v", err)
	}

	reward, err := c.cop.Select(won, encReward, encZero)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't select reward: %v", err)
	}

	afterStake, err := c.cop.Sub(balance, encStake)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't debit stake: %v", err)
	}

	newBalance, err := c.cop.Add(afterStake, reward)
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't credit reward: %v", err)
	}

	err = snap.Set(balanceKey(id), newBalance.Bytes())
	if err != nil {
		return fhe.Handle{}, xerrors.Errorf("couldn't set balance: %v", err)
	}

	return newBalance, nil
}

type record struct {
	guess fhe.Handle
	draw  fhe.Handle
	won   fhe.Handle
}

// writeRecord overwrites the single game record of the account. Only the
// latest game is retained.
func (c wagerCommand) writeRecord(snap store.Snapshot, id []byte, r record) error {
	buffer := make([]byte, 0, 3*fhe.HandleLen+1)
	buffer = append(buffer, r.guess.Bytes()...)
	buffer = append(buffer, r.draw.Bytes()...)
	buffer = append(buffer, r.won.Bytes()...)
	buffer = append(buffer, 1)

	err := snap.Set(lastGameKey(id), buffer)
	if err != nil {
		return xerrors.Errorf("couldn't set record: %v", err)
	}

	return nil
}
