package main

import (
	"github.com/urfave/cli"
)

var melswapInfoCommand = cli.Command{
	Name:      "melswap-info",
	Category:  "Chain",
	Usage:     "Show a constant-product pool's reserves and price.",
	ArgsUsage: "pool-key",
	Action:    actionDecorator(melswapInfo),
}

func melswapInfo(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowCommandHelp(c, "melswap-info")
	}
	var pool interface{}
	if err := call(c, "melswap_info", poolKeyParams{c.Args().Get(0)}, &pool); err != nil {
		return err
	}
	printRespJSON(pool)
	return nil
}

type poolKeyParams struct {
	PoolKey string `json:"pool_key"`
}

var simulateSwapCommand = cli.Command{
	Name:      "simulate-swap",
	Category:  "Chain",
	Usage:     "Simulate a trade against a pool without submitting anything.",
	ArgsUsage: "to-denom from-denom amount",
	Action:    actionDecorator(simulateSwap),
}

func simulateSwap(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.ShowCommandHelp(c, "simulate-swap")
	}
	var result interface{}
	params := simulateSwapParams{
		To:    c.Args().Get(0),
		From:  c.Args().Get(1),
		Value: c.Args().Get(2),
	}
	if err := call(c, "simulate_swap", params, &result); err != nil {
		return err
	}
	printRespJSON(result)
	return nil
}

type simulateSwapParams struct {
	To    string `json:"to"`
	From  string `json:"from"`
	Value string `json:"value"`
}

var latestHeaderCommand = cli.Command{
	Name:     "latest-header",
	Category: "Chain",
	Usage:    "Show the daemon's current view of the chain tip.",
	Action:   actionDecorator(latestHeader),
}

func latestHeader(c *cli.Context) error {
	var header interface{}
	if err := call(c, "latest_header", nil, &header); err != nil {
		return err
	}
	printRespJSON(header)
	return nil
}

var debugStatsCommand = cli.Command{
	Name:     "debug-stats",
	Category: "Chain",
	Usage:    "Dump row counts for every table in the wallet database.",
	Action:   actionDecorator(debugStats),
}

func debugStats(c *cli.Context) error {
	var stats interface{}
	if err := call(c, "debug_stats", nil, &stats); err != nil {
		return err
	}
	printRespJSON(stats)
	return nil
}
