package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fit-token/internal/domain"
	"fit-token/internal/programs/fittoken"
	"fit-token/internal/programs/token"
	"fit-token/internal/rpcclient"
	"fit-token/internal/runtime"
)

// newAccountKeypair loads path, or generates a keypair when path is empty.
func newAccountKeypair(path string) (*domain.Keypair, error) {
	if path != "" {
		return domain.LoadKeypairFile(path)
	}
	return domain.NewKeypair()
}

// submit signs ixs, sends them and prints the signature.
func (a *app) submit(ctx context.Context, ixs []runtime.Instruction, signers ...*domain.Keypair) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	tx, err := runtime.NewTransaction(ixs, uint64(time.Now().UnixNano()), signers...)
	if err != nil {
		return fmt.Errorf("build transaction: %w", err)
	}
	sig, err := a.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Printf("Signature: %s\n", sig)
	return nil
}

func runKeygen(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", a.cfg.Keypair, "output file")
	force := fs.Bool("force", false, "overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("%s exists (use -force to overwrite)", *out)
	}
	kp, err := domain.NewKeypair()
	if err != nil {
		return err
	}
	if err := domain.SaveKeypairFile(*out, kp); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\nPublic key: %s\n", *out, kp.PublicKey())
	return nil
}

func runAddress(_ context.Context, a *app, _ []string) error {
	kp, err := a.signer()
	if err != nil {
		return err
	}
	fmt.Println(kp.PublicKey())
	return nil
}

func runCreateMint(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-mint", flag.ExitOnError)
	decimals := fs.Uint("decimals", 0, "mint decimals")
	mintPath := fs.String("mint-keypair", "", "keypair for the mint address (default: new)")
	fs.Parse(args)

	payer, err := a.signer()
	if err != nil {
		return err
	}
	mint, err := newAccountKeypair(*mintPath)
	if err != nil {
		return err
	}

	fmt.Printf("Mint: %s\n", mint.PublicKey())
	return a.submit(ctx, token.CreateMint(payer.PublicKey(), mint.PublicKey(), payer.PublicKey(), uint8(*decimals)), payer, mint)
}

func runCreateAccount(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-account", flag.ExitOnError)
	var mint, owner pubkeyFlag
	fs.Var(&mint, "mint", "mint address (required)")
	fs.Var(&owner, "owner", "account owner (default: signer)")
	fs.Parse(args)
	if err := requireFlags(map[string]*pubkeyFlag{"mint": &mint}); err != nil {
		return err
	}

	payer, err := a.signer()
	if err != nil {
		return err
	}
	if !owner.set {
		owner.key = payer.PublicKey()
	}
	account, err := domain.NewKeypair()
	if err != nil {
		return err
	}

	fmt.Printf("Account: %s\n", account.PublicKey())
	return a.submit(ctx, token.CreateAccount(payer.PublicKey(), account.PublicKey(), mint.key, owner.key), payer, account)
}

func runCreateVault(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create-vault", flag.ExitOnError)
	var mint pubkeyFlag
	fs.Var(&mint, "mint", "mint address (required)")
	fs.Parse(args)
	if err := requireFlags(map[string]*pubkeyFlag{"mint": &mint}); err != nil {
		return err
	}

	payer, err := a.signer()
	if err != nil {
		return err
	}
	owner, _, err := fittoken.VaultAddress(mint.key)
	if err != nil {
		return err
	}
	vault, err := domain.NewKeypair()
	if err != nil {
		return err
	}

	fmt.Printf("Vault: %s (owner %s)\n", vault.PublicKey(), owner)
	return a.submit(ctx, token.CreateAccount(payer.PublicKey(), vault.PublicKey(), mint.key, owner), payer, vault)
}

func runInitialize(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("initialize", flag.ExitOnError)
	var mint pubkeyFlag
	fs.Var(&mint, "mint", "mint address (required)")
	name := fs.String("name", "", "token name, at most 32 bytes")
	symbol := fs.String("symbol", "", "token symbol, at most 8 bytes")
	decimals := fs.Uint("decimals", 0, "decimals recorded in the registry")
	infoPath := fs.String("info-keypair", "", "keypair for the registry address (default: new)")
	fs.Parse(args)
	if err := requireFlags(map[string]*pubkeyFlag{"mint": &mint}); err != nil {
		return err
	}

	authority, err := a.signer()
	if err != nil {
		return err
	}
	info, err := newAccountKeypair(*infoPath)
	if err != nil {
		return err
	}

	fmt.Printf("Token info: %s\n", info.PublicKey())
	ix := fittoken.Initialize(info.PublicKey(), mint.key, authority.PublicKey(), *name, *symbol, uint8(*decimals))
	return a.submit(ctx, []runtime.Instruction{ix}, authority, info)
}

func runMintReward(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("mint-reward", flag.ExitOnError)
	var mint, to, info pubkeyFlag
	fs.Var(&mint, "mint", "mint address (required)")
	fs.Var(&to, "to", "destination token account (required)")
	fs.Var(&info, "info", "token registry record, needed by nodes that check the registry authority")
	amount := fs.Uint64("amount", 0, "amount in base units")
	fs.Parse(args)
	if err := requireFlags(map[string]*pubkeyFlag{"mint": &mint, "to": &to}); err != nil {
		return err
	}

	authority, err := a.signer()
	if err != nil {
		return err
	}
	var registry *domain.Pubkey
	if info.set {
		registry = &info.key
	}

	ix := fittoken.MintReward(mint.key, to.key, authority.PublicKey(), *amount, registry)
	return a.submit(ctx, []runtime.Instruction{ix}, authority)
}

func runStake(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stake", flag.ExitOnError)
	var from, vault pubkeyFlag
	fs.Var(&from, "from", "signer's token account (required)")
	fs.Var(&vault, "vault", "vault token account (required)")
	amount := fs.Uint64("amount", 0, "amount in base units")
	fs.Parse(args)
	if err := requireFlags(map[string]*pubkeyFlag{"from": &from, "vault": &vault}); err != nil {
		return err
	}

	user, err := a.signer()
	if err != nil {
		return err
	}
	stake, err := domain.NewKeypair()
	if err != nil {
		return err
	}

	fmt.Printf("Stake record: %s\n", stake.PublicKey())
	ix := fittoken.StakeTokens(stake.PublicKey(), from.key, vault.key, user.PublicKey(), *amount)
	return a.submit(ctx, []runtime.Instruction{ix}, user, stake)
}

// keyArg parses the single positional public key of a query command.
func keyArg(name string, args []string) (domain.Pubkey, error) {
	if len(args) != 1 {
		return domain.Pubkey{}, fmt.Errorf("usage: fitctl %s <address>", name)
	}
	return domain.ParsePubkey(args[0])
}

func runTokenInfo(ctx context.Context, a *app, args []string) error {
	key, err := keyArg("token-info", args)
	if err != nil {
		return err
	}
	info, err := a.rpc.GetTokenInfo(ctx, key)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"name":      info.Name,
		"symbol":    info.Symbol,
		"decimals":  info.Decimals,
		"authority": info.Authority.String(),
	})
}

func runStakeInfo(ctx context.Context, a *app, args []string) error {
	key, err := keyArg("stake-info", args)
	if err != nil {
		return err
	}
	stake, err := a.rpc.GetStakeInfo(ctx, key)
	if err != nil {
		return err
	}
	return printJSON(stakeView(key, stake))
}

func runStakes(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stakes", flag.ExitOnError)
	var user pubkeyFlag
	fs.Var(&user, "user", "only records of this user")
	fs.Parse(args)

	accounts, err := a.rpc.GetProgramAccounts(ctx, fittoken.ProgramID)
	if err != nil {
		return err
	}

	var views []map[string]interface{}
	for _, acc := range accounts {
		var stake domain.StakeInfo
		if stake.UnmarshalBinary(acc.Data) != nil {
			continue // registry records
		}
		if user.set && stake.User != user.key {
			continue
		}
		views = append(views, stakeView(acc.Key, &stake))
	}
	return printJSON(views)
}

func stakeView(key domain.Pubkey, s *domain.StakeInfo) map[string]interface{} {
	return map[string]interface{}{
		"address":   key.String(),
		"user":      s.User.String(),
		"amount":    s.Amount,
		"timestamp": s.Timestamp,
		"time":      time.Unix(s.Timestamp, 0).UTC().Format(time.RFC3339),
	}
}

func runBalance(ctx context.Context, a *app, args []string) error {
	key, err := keyArg("balance", args)
	if err != nil {
		return err
	}
	amount, err := a.rpc.GetTokenAccountBalance(ctx, key)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d base units)\n", amount.UIAmountString, amount.Amount)
	return nil
}

func runSupply(ctx context.Context, a *app, args []string) error {
	key, err := keyArg("supply", args)
	if err != nil {
		return err
	}
	amount, err := a.rpc.GetTokenSupply(ctx, key)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d base units)\n", amount.UIAmountString, amount.Amount)
	return nil
}

func runTransaction(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: fitctl tx <signature>")
	}
	tx, err := a.rpc.GetTransaction(ctx, args[0])
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("transaction %s not found", args[0])
	}
	return printJSON(tx)
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	mentions := fs.String("mentions", fittoken.ProgramID.String(), "comma-separated keys to watch (empty: all)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := rpcclient.NewWSClient(ctx, a.cfg.WSURL, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	var filter rpcclient.LogsFilter
	for _, m := range strings.Split(*mentions, ",") {
		if m = strings.TrimSpace(m); m != "" {
			filter.Mentions = append(filter.Mentions, m)
		}
	}

	ch, err := ws.SubscribeLogs(ctx, filter)
	if err != nil {
		return err
	}
	a.logger.Printf("Watching %s", a.cfg.WSURL)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			status := "ok"
			if n.Err != nil {
				raw, _ := json.Marshal(n.Err)
				status = "failed " + string(raw)
			}
			fmt.Printf("slot %d %s %s\n", n.Slot, n.Signature, status)
			for _, line := range n.Logs {
				fmt.Println("  " + line)
			}
		}
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
