// Package main implements a demonstration node of the confidential wagering
// ledger, running the state machine, the shadow coprocessor and the
// decryption oracle in a single process.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/arena"
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
	"golang.org/x/xerrors"
)

func main() {
	app := &cli.App{
		Name:  "arena",
		Usage: "confidential wagering ledger demonstration node",
		Commands: []*cli.Command{
			{
				Name:  "demo",
				Usage: "register an account, play games and reveal the outcomes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path of the yaml configuration file",
					},
					&cli.StringFlag{
						Name:  "db",
						Value: "arena.db",
						Usage: "path of the ledger database",
					},
					&cli.UintFlag{
						Name:  "guess",
						Value: 42,
						Usage: "guess in [0, 100) staked on every game",
					},
					&cli.UintFlag{
						Name:  "games",
						Value: 1,
						Usage: "number of games to play",
					},
				},
				Action: demoAction,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		arena.Logger.Fatal().Err(err).Msg("command failed")
	}
}

func demoAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"), c.String("db"))
	if err != nil {
		return xerrors.Errorf("failed to load configuration: %v", err)
	}

	db, err := kv.New(cfg.DB)
	if err != nil {
		return xerrors.Errorf("failed to open database: %v", err)
	}

	defer db.Close()

	cop := shadow.NewShadow(cfg.GetInstance(), cfg.InputMax)

	exec := native.NewExecution()
	exec.Set(wager.ContractName, wager.NewContract(cop))

	srvc, err := ledger.NewService(db, exec)
	if err != nil {
		return xerrors.Errorf("failed to create ledger: %v", err)
	}

	orc := oracle.NewService(cfg.GetInstance(), srvc.GetStore(), cop)

	player := ed25519.NewSigner()
	mgr := signed.NewManager(player)

	err = register(srvc, mgr)
	if err != nil {
		return xerrors.Errorf("failed to register: %v", err)
	}

	for i := 0; i < int(c.Uint("games")); i++ {
		err = play(srvc, mgr, cop, player, uint32(c.Uint("guess")))
		if err != nil {
			return xerrors.Errorf("failed to play: %v", err)
		}
	}

	err = reveal(c, srvc, orc, cfg.GetInstance(), player)
	if err != nil {
		return xerrors.Errorf("failed to reveal: %v", err)
	}

	return nil
}

func register(srvc *ledger.Service, mgr txn.Manager) error {
	tx, err := mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdRegister)},
	)
	if err != nil {
		return xerrors.Errorf("failed to make transaction: %v", err)
	}

	return srvc.Process(tx)
}

func play(srvc *ledger.Service, mgr txn.Manager, cop *shadow.Shadow,
	player ed25519.Signer, guess uint32) error {

	handle, proof, err := cop.Input(guess, player.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to encrypt guess: %v", err)
	}

	tx, err := mgr.Make(
		txn.Arg{Key: native.ContractArg, Value: []byte(wager.ContractName)},
		txn.Arg{Key: wager.CmdArg, Value: []byte(wager.CmdPlay)},
		txn.Arg{Key: wager.GuessArg, Value: handle.Bytes()},
		txn.Arg{Key: wager.ProofArg, Value: proof},
	)
	if err != nil {
		return xerrors.Errorf("failed to make transaction: %v", err)
	}

	return srvc.Process(tx)
}

func reveal(c *cli.Context, srvc *ledger.Service, orc decrypt.Oracle,
	instance []byte, player ed25519.Signer) error {

	session, err := client.NewSession(player, [][]byte{instance},
		time.Now(), 10*time.Minute)
	if err != nil {
		return xerrors.Errorf("failed to create session: %v", err)
	}

	state := srvc.GetStore()

	balance, err := wager.GetBalance(state, player.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to get balance: %v", err)
	}

	games, err := wager.GetGamesPlayed(state, player.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to get play counter: %v", err)
	}

	last, err := wager.GetLastGame(state, player.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to get last game: %v", err)
	}

	values, err := session.Decrypt(orc,
		decrypt.Pair{Handle: balance, Instance: instance},
		decrypt.Pair{Handle: last.Guess, Instance: instance},
		decrypt.Pair{Handle: last.Draw, Instance: instance},
		decrypt.Pair{Handle: last.Won, Instance: instance},
	)
	if err != nil {
		return xerrors.Errorf("failed to decrypt: %v", err)
	}

	fmt.Fprintf(c.App.Writer, "games played: %d\n", games)
	fmt.Fprintf(c.App.Writer, "balance: %d\n", values[balance])
	fmt.Fprintf(c.App.Writer, "last guess: %d\n", values[last.Guess])
	fmt.Fprintf(c.App.Writer, "last draw: %d\n", values[last.Draw])
	fmt.Fprintf(c.App.Writer, "last game won: %t\n", values[last.Won] == 1)

	return nil
}
