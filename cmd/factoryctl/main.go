package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ruteri/subaccount-factory/api"
	"github.com/ruteri/subaccount-factory/api/clients"
	"github.com/ruteri/subaccount-factory/cmd/flags"
	"github.com/ruteri/subaccount-factory/cryptoutils"
	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/urfave/cli/v2"
)

var flagFee = &cli.StringFlag{
	Name:     "fee",
	Required: true,
	Usage:    "registration fee in the smallest unit",
}

var flagImage = &cli.StringFlag{
	Name:     "image",
	Required: true,
	Usage:    "path to the program image",
}

var flagTenant = &cli.Uint64Flag{
	Name:     "tenant",
	Required: true,
	Usage:    "tenant id to register",
}

var flagReferral = &cli.StringFlag{
	Name:     "referral",
	Required: true,
	Usage:    "referral account passed to the sub-account initializer",
}

var flagWait = &cli.DurationFlag{
	Name:  "wait",
	Value: 30 * time.Second,
	Usage: "wait up to this long for settlement, 0 to return immediately",
}

var flagOut = &cli.StringFlag{
	Name:  "out",
	Value: "ledger.key",
	Usage: "file to write the generated key to",
}

func main() {
	app := &cli.App{
		Name:  "factoryctl",
		Usage: "Administer and use the sub-account factory",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.FactoryFlag,
			flags.SignerFlag,
			flags.KeyFileFlag,
		},
		DefaultCommand: "fee",
		Commands: []*cli.Command{
			{
				Name:  "fee",
				Usage: "show the registration fee",
				Action: func(cCtx *cli.Context) error {
					fee, err := readClient(cCtx).RegistrationFee(cCtx.Context)
					if err != nil {
						return err
					}
					fmt.Println(fee.String())
					return nil
				},
			},
			{
				Name:  "set-fee",
				Usage: "change the registration fee (administrator only)",
				Flags: []cli.Flag{flagFee},
				Action: func(cCtx *cli.Context) error {
					fee, err := interfaces.ParseAmount(cCtx.String(flagFee.Name))
					if err != nil {
						return err
					}
					client, err := signingClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := client.SetRegistrationFee(cCtx.Context, factoryAccount(cCtx), fee)
					return printTransaction(resp, err)
				},
			},
			{
				Name:  "upload-image",
				Usage: "replace the program image (signed by the factory account)",
				Flags: []cli.Flag{flagImage},
				Action: func(cCtx *cli.Context) error {
					image, err := os.ReadFile(cCtx.String(flagImage.Name))
					if err != nil {
						return err
					}
					client, err := signingClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := client.SetProgramImage(cCtx.Context, factoryAccount(cCtx), image)
					return printTransaction(resp, err)
				},
			},
			{
				Name:  "register",
				Usage: "pay the registration fee and provision a tenant sub-account",
				Flags: []cli.Flag{flagTenant, flagReferral, flagWait},
				Action: func(cCtx *cli.Context) error {
					referral := interfaces.AccountID(cCtx.String(flagReferral.Name))
					if err := referral.Validate(); err != nil {
						return err
					}
					client, err := signingClient(cCtx)
					if err != nil {
						return err
					}

					ctx := cCtx.Context
					fee, err := client.RegistrationFee(ctx)
					if err != nil {
						return err
					}

					tenant := interfaces.TenantID(cCtx.Uint64(flagTenant.Name))
					resp, err := client.Register(ctx, factoryAccount(cCtx), tenant, referral, fee)
					if err := printTransaction(resp, err); err != nil {
						return err
					}

					wait := cCtx.Duration(flagWait.Name)
					if wait == 0 {
						return nil
					}
					waitCtx, cancel := context.WithTimeout(ctx, wait)
					defer cancel()
					tree, err := client.WaitForSettlement(waitCtx, resp.Receipt.ID, 200*time.Millisecond)
					if err != nil {
						return fmt.Errorf("waiting for settlement: %w", err)
					}
					return printReceiptTree(waitCtx, client, tree)
				},
			},
			{
				Name:      "receipt",
				Usage:     "show a receipt and everything it spawned",
				ArgsUsage: "<receipt-id>",
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return errors.New("expected a receipt id")
					}
					client := readClient(cCtx)
					tree, err := client.Receipt(cCtx.Context, cCtx.Args().First())
					if err != nil {
						return err
					}
					return printReceiptTree(cCtx.Context, client, tree)
				},
			},
			{
				Name:      "account",
				Usage:     "show account balances",
				ArgsUsage: "<account-id>...",
				Action: func(cCtx *cli.Context) error {
					client := readClient(cCtx)
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Account", "Exists", "Balance", "Code Size", "Code Hash"})
					for _, id := range cCtx.Args().Slice() {
						account, err := client.Account(cCtx.Context, interfaces.AccountID(id))
						if err != nil {
							return err
						}
						tw.AppendRow(table.Row{account.ID, account.Exists, account.Balance.String(), account.CodeSize, account.CodeHash})
					}
					tw.Render()
					return nil
				},
			},
			{
				Name:  "keygen",
				Usage: "generate a signing key and print its access-key address",
				Flags: []cli.Flag{flagOut},
				Action: func(cCtx *cli.Context) error {
					key, err := cryptoutils.GenerateKey()
					if err != nil {
						return err
					}
					path := cCtx.String(flagOut.Name)
					if err := os.WriteFile(path, []byte(cryptoutils.EncodePrivateKey(key)+"\n"), 0o600); err != nil {
						return err
					}
					fmt.Println(cryptoutils.KeyAddress(key).Hex())
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func factoryAccount(cCtx *cli.Context) interfaces.AccountID {
	return interfaces.AccountID(cCtx.String(flags.FactoryFlag.Name))
}

func readClient(cCtx *cli.Context) *clients.LedgerClient {
	return clients.NewLedgerClient(cCtx.String(flags.ServerAddrFlag.Name), "", nil)
}

func signingClient(cCtx *cli.Context) (*clients.LedgerClient, error) {
	signer := interfaces.AccountID(cCtx.String(flags.SignerFlag.Name))
	if err := signer.Validate(); err != nil {
		return nil, fmt.Errorf("--signer: %w", err)
	}
	keyFile := cCtx.String(flags.KeyFileFlag.Name)
	if keyFile == "" {
		return nil, errors.New("--key-file is required to sign transactions")
	}
	key, err := cryptoutils.LoadPrivateKey(keyFile)
	if err != nil {
		return nil, err
	}
	return clients.NewLedgerClient(cCtx.String(flags.ServerAddrFlag.Name), signer, key), nil
}

func printTransaction(resp *api.TransactionResponse, err error) error {
	if resp != nil && resp.Receipt != nil {
		printReceipts([]*interfaces.Receipt{resp.Receipt}, map[string]int{})
	}
	return err
}

func printReceiptTree(ctx context.Context, client *clients.LedgerClient, tree *api.ReceiptResponse) error {
	rows := []*interfaces.Receipt{tree.Receipt}
	depth := map[string]int{tree.Receipt.ID: 0}

	queue := append([]*interfaces.Receipt{}, tree.Children...)
	for _, child := range tree.Children {
		depth[child.ID] = 1
	}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		rows = append(rows, r)

		sub, err := client.Receipt(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, child := range sub.Children {
			depth[child.ID] = depth[r.ID] + 1
			queue = append(queue, child)
		}
	}

	printReceipts(rows, depth)
	return nil
}

// printReceipts renders one row per receipt, indenting ids by tree depth.
func printReceipts(receipts []*interfaces.Receipt, depth map[string]int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Receipt", "Kind", "Predecessor", "Receiver", "Method", "Status", "Logs / Error"})
	for _, r := range receipts {
		tw.AppendRow(receiptRow(r, depth[r.ID]))
	}
	tw.Render()
}

func receiptRow(r *interfaces.Receipt, depth int) table.Row {
	id := strings.Repeat("  ", depth) + r.ID
	lines := append([]string{}, r.Logs...)
	if r.Error != "" {
		lines = append(lines, "error: "+r.Error)
	}
	return table.Row{id, r.Kind, r.Predecessor, r.Receiver, r.Method, r.Status, strings.Join(lines, "\n")}
}
