package main

import (
	"github.com/urfave/cli"
)

var listWalletsCommand = cli.Command{
	Name:     "list-wallets",
	Category: "Wallets",
	Usage:    "List every wallet known to the daemon.",
	Action:   actionDecorator(listWallets),
}

func listWallets(c *cli.Context) error {
	var names []string
	if err := call(c, "list_wallets", nil, &names); err != nil {
		return err
	}
	printRespJSON(names)
	return nil
}

var walletSummaryCommand = cli.Command{
	Name:      "summary",
	Category:  "Wallets",
	Usage:     "Show a wallet's balances, address, and lock state.",
	ArgsUsage: "wallet-name",
	Action:    actionDecorator(walletSummary),
}

func walletSummary(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "summary")
	}
	var summary interface{}
	if err := call(c, "wallet_summary", namedParams{c.Args().Get(0)}, &summary); err != nil {
		return err
	}
	printRespJSON(summary)
	return nil
}

var createWalletCommand = cli.Command{
	Name:      "create",
	Category:  "Wallets",
	Usage:     "Create a new wallet, optionally from an existing signing seed.",
	ArgsUsage: "wallet-name password [signing-seed]",
	Action:    actionDecorator(createWallet),
}

func createWallet(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowCommandHelp(c, "create")
	}
	params := createWalletParams{
		Name:     c.Args().Get(0),
		Password: c.Args().Get(1),
	}
	if c.NArg() >= 3 {
		seed := c.Args().Get(2)
		params.Secret = &seed
	}
	var wallet interface{}
	if err := call(c, "create_wallet", params, &wallet); err != nil {
		return err
	}
	printRespJSON(wallet)
	return nil
}

type createWalletParams struct {
	Name     string  `json:"name"`
	Password string  `json:"password"`
	Secret   *string `json:"secret,omitempty"`
}

var lockWalletCommand = cli.Command{
	Name:      "lock",
	Category:  "Wallets",
	Usage:     "Drop a wallet's in-memory signer.",
	ArgsUsage: "wallet-name",
	Action:    actionDecorator(lockWallet),
}

func lockWallet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "lock")
	}
	var ok bool
	if err := call(c, "lock_wallet", namedParams{c.Args().Get(0)}, &ok); err != nil {
		return err
	}
	printRespJSON(ok)
	return nil
}

var unlockWalletCommand = cli.Command{
	Name:      "unlock",
	Category:  "Wallets",
	Usage:     "Decrypt a wallet's signing seed and hold it in memory.",
	ArgsUsage: "wallet-name password",
	Action:    actionDecorator(unlockWallet),
}

func unlockWallet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowCommandHelp(c, "unlock")
	}
	var ok bool
	params := unlockParams{Name: c.Args().Get(0), Password: c.Args().Get(1)}
	if err := call(c, "unlock_wallet", params, &ok); err != nil {
		return err
	}
	printRespJSON(ok)
	return nil
}

type unlockParams struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

var exportSKCommand = cli.Command{
	Name:      "export-sk",
	Category:  "Wallets",
	Usage:     "Export a wallet's signing seed, Crockford base32-encoded.",
	ArgsUsage: "wallet-name password",
	Action:    actionDecorator(exportSK),
}

func exportSK(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowCommandHelp(c, "export-sk")
	}
	var seed string
	params := unlockParams{Name: c.Args().Get(0), Password: c.Args().Get(1)}
	if err := call(c, "export_sk", params, &seed); err != nil {
		return err
	}
	printRespJSON(seed)
	return nil
}

var dumpCoinsCommand = cli.Command{
	Name:      "dump-coins",
	Category:  "Wallets",
	Usage:     "List every coin visible to a wallet.",
	ArgsUsage: "wallet-name",
	Action:    actionDecorator(dumpCoins),
}

func dumpCoins(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "dump-coins")
	}
	var coins interface{}
	if err := call(c, "dump_coins", namedParams{c.Args().Get(0)}, &coins); err != nil {
		return err
	}
	printRespJSON(coins)
	return nil
}

var dumpTransactionsCommand = cli.Command{
	Name:      "dump-transactions",
	Category:  "Wallets",
	Usage:     "List a wallet's transaction history.",
	ArgsUsage: "wallet-name",
	Action:    actionDecorator(dumpTransactions),
}

func dumpTransactions(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "dump-transactions")
	}
	var history interface{}
	if err := call(c, "dump_transactions", namedParams{c.Args().Get(0)}, &history); err != nil {
		return err
	}
	printRespJSON(history)
	return nil
}

type namedParams struct {
	Name string `json:"name"`
}
