// Command melwalletctl is a thin JSON-RPC client for melwalletd, with
// one small command file per concern and a shared actionDecorator /
// printRespJSON pair of helpers wrapping each command's HTTP round trip.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "melwalletctl"
	app.Usage = "control plane for melwalletd"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "127.0.0.1:11773",
			Usage: "melwalletd's RPC listen address",
		},
	}
	app.Commands = []cli.Command{
		listWalletsCommand,
		walletSummaryCommand,
		createWalletCommand,
		lockWalletCommand,
		unlockWalletCommand,
		exportSKCommand,
		dumpCoinsCommand,
		dumpTransactionsCommand,
		prepareTxCommand,
		sendTxCommand,
		sendFaucetCommand,
		txBalanceCommand,
		txStatusCommand,
		latestHeaderCommand,
		melswapInfoCommand,
		simulateSwapCommand,
		debugStatsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "[melwalletctl]", err)
		os.Exit(1)
	}
}

// actionDecorator wraps a cli.ActionFunc so errors come back wrapped in
// the command's name.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := f(c); err != nil {
			return fmt.Errorf("%s: %w", c.Command.Name, err)
		}
		return nil
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// call posts method/params to the daemon named by the rpcserver flag
// and unmarshals its result into out.
func call(c *cli.Context, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/", c.GlobalString("rpcserver"))
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// printRespJSON pretty-prints v for interactive use.
func printRespJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(b))
}
