package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var prepareTxCommand = cli.Command{
	Name:      "prepare-tx",
	Category:  "Transactions",
	Usage:     "Build and sign a single-output transaction without broadcasting it.",
	ArgsUsage: "wallet-name dest-covhash denom amount",
	Action:    actionDecorator(prepareTx),
}

func prepareTx(c *cli.Context) error {
	if c.NArg() != 4 {
		return cli.ShowCommandHelp(c, "prepare-tx")
	}

	params := prepareTxParams{
		Name: c.Args().Get(0),
		Args: prepareTxArgs{
			Outputs: []coinDataJSON{{
				Covhash: c.Args().Get(1),
				Value:   c.Args().Get(3),
				Denom:   c.Args().Get(2),
			}},
		},
	}

	var tx interface{}
	if err := call(c, "prepare_tx", params, &tx); err != nil {
		return err
	}
	printRespJSON(tx)
	return nil
}

type prepareTxParams struct {
	Name string        `json:"name"`
	Args prepareTxArgs `json:"args"`
}

type prepareTxArgs struct {
	Outputs    []coinDataJSON `json:"outputs"`
	Inputs     []string       `json:"inputs,omitempty"`
	FeeBallast uint64         `json:"fee_ballast"`
}

type coinDataJSON struct {
	Covhash string `json:"Covhash"`
	Value   string `json:"Value"`
	Denom   string `json:"Denom"`
}

var sendTxCommand = cli.Command{
	Name:      "send-tx",
	Category:  "Transactions",
	Usage:     "Broadcast a prepared transaction (as dumped by prepare-tx) and record it as pending.",
	ArgsUsage: "wallet-name tx-json-file",
	Action:    actionDecorator(sendTx),
}

func sendTx(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowCommandHelp(c, "send-tx")
	}

	raw, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("read tx file: %w", err)
	}
	var tx json.RawMessage = raw

	var txhash string
	params := sendTxParams{Name: c.Args().Get(0), Tx: tx}
	if err := call(c, "send_tx", params, &txhash); err != nil {
		return err
	}
	printRespJSON(txhash)
	return nil
}

type sendTxParams struct {
	Name string          `json:"name"`
	Tx   json.RawMessage `json:"tx"`
}

var sendFaucetCommand = cli.Command{
	Name:      "faucet",
	Category:  "Transactions",
	Usage:     "Request a testnet faucet drop into a wallet.",
	ArgsUsage: "wallet-name",
	Action:    actionDecorator(sendFaucet),
}

func sendFaucet(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "faucet")
	}
	var txhash string
	if err := call(c, "send_faucet", namedParams{c.Args().Get(0)}, &txhash); err != nil {
		return err
	}
	printRespJSON(txhash)
	return nil
}

var txBalanceCommand = cli.Command{
	Name:      "tx-balance",
	Category:  "Transactions",
	Usage:     "Show a transaction's net effect on a wallet's balances.",
	ArgsUsage: "wallet-name txhash",
	Action:    actionDecorator(txBalance),
}

func txBalance(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowCommandHelp(c, "tx-balance")
	}
	if _, err := hex.DecodeString(c.Args().Get(1)); err != nil {
		return fmt.Errorf("invalid txhash: %w", err)
	}
	var balance interface{}
	params := txLookupParams{Name: c.Args().Get(0), TxHash: c.Args().Get(1)}
	if err := call(c, "tx_balance", params, &balance); err != nil {
		return err
	}
	printRespJSON(balance)
	return nil
}

var txStatusCommand = cli.Command{
	Name:      "tx-status",
	Category:  "Transactions",
	Usage:     "Show a transaction's confirmation status and outputs.",
	ArgsUsage: "wallet-name txhash",
	Action:    actionDecorator(txStatus),
}

func txStatus(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowCommandHelp(c, "tx-status")
	}
	var status interface{}
	params := txLookupParams{Name: c.Args().Get(0), TxHash: c.Args().Get(1)}
	if err := call(c, "tx_status", params, &status); err != nil {
		return err
	}
	printRespJSON(status)
	return nil
}

type txLookupParams struct {
	Name   string `json:"name"`
	TxHash string `json:"txhash"`
}
