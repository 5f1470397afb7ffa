// Package main is the fit-token command line client. It builds, signs and
// submits transactions to a node and reads back ledger state.
//
// Usage:
//
//	fitctl [-url URL] [-ws URL] [-keypair FILE] [-timeout DUR] <command> [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"fit-token/internal/config"
	"fit-token/internal/domain"
	"fit-token/internal/rpcclient"
)

// command is one fitctl subcommand.
type command struct {
	summary string
	run     func(ctx context.Context, app *app, args []string) error
}

var commands = map[string]command{
	"keygen":         {"write a new keypair file", runKeygen},
	"address":        {"print the public key of the signer", runAddress},
	"create-mint":    {"create a mint controlled by the signer", runCreateMint},
	"create-account": {"create a token balance account", runCreateAccount},
	"create-vault":   {"create the staking vault of a mint", runCreateVault},
	"initialize":     {"register token metadata for a mint", runInitialize},
	"mint-reward":    {"mint reward tokens to a balance account", runMintReward},
	"stake":          {"stake tokens into the vault", runStake},
	"token-info":     {"show a token registry record", runTokenInfo},
	"stake-info":     {"show a stake record", runStakeInfo},
	"stakes":         {"list stake records", runStakes},
	"balance":        {"show a token account balance", runBalance},
	"supply":         {"show a mint supply", runSupply},
	"tx":             {"show an executed transaction", runTransaction},
	"watch":          {"stream reward program transactions", runWatch},
}

// app carries the client settings shared by all commands.
type app struct {
	cfg    config.Client
	rpc    *rpcclient.HTTPClient
	logger *log.Logger
}

func main() {
	logger := log.New(os.Stderr, "[fitctl] ", log.LstdFlags)

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}

	a := &app{logger: logger}
	a.cfg.LoadDefaults()
	a.cfg.ApplyEnv()

	fs := flag.NewFlagSet("fitctl", flag.ExitOnError)
	a.cfg.RegisterFlags(fs)
	fs.Usage = func() { usage(fs) }
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		usage(fs)
		os.Exit(2)
	}
	name, args := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
		usage(fs)
		os.Exit(2)
	}

	a.rpc = rpcclient.NewHTTPClient(a.cfg.RPCURL, rpcclient.WithTimeout(a.cfg.Timeout))

	if err := cmd.run(context.Background(), a, args); err != nil {
		var txErr *rpcclient.TransactionError
		if errors.As(err, &txErr) {
			for _, line := range txErr.Logs {
				fmt.Fprintln(os.Stderr, "  "+line)
			}
		}
		logger.Fatalf("%s: %v", name, err)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: fitctl [flags] <command> [command flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-15s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fs.PrintDefaults()
}

// signer loads the keypair named by -keypair.
func (a *app) signer() (*domain.Keypair, error) {
	kp, err := domain.LoadKeypairFile(a.cfg.Keypair)
	if err != nil {
		return nil, fmt.Errorf("load signer: %w", err)
	}
	return kp, nil
}

// pubkeyFlag is a flag.Value holding a base58 public key.
type pubkeyFlag struct {
	key domain.Pubkey
	set bool
}

func (f *pubkeyFlag) String() string {
	if !f.set {
		return ""
	}
	return f.key.String()
}

func (f *pubkeyFlag) Set(s string) error {
	key, err := domain.ParsePubkey(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	f.key, f.set = key, true
	return nil
}

// requireFlags lists the unset flags among named.
func requireFlags(named map[string]*pubkeyFlag) error {
	names := make([]string, 0, len(named))
	for name, f := range named {
		if !f.set {
			names = append(names, "-"+name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return fmt.Errorf("missing required flags: %s", strings.Join(names, ", "))
}
