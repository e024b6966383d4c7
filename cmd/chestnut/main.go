package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chestnut-wallet/chestnut/cashu"
	"github.com/chestnut-wallet/chestnut/wallet"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var chestnut *wallet.Wallet

func walletConfig(ctx *cli.Context) wallet.Config {
	path := setWalletPath()

	// .env file in the wallet dir takes priority over vars in the environment
	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err == nil {
		err = godotenv.Load(envPath)
		if err != nil {
			printErr(err)
		}
	}

	mintURL := os.Getenv("MINT_URL")
	if ctx.IsSet("mint") {
		mintURL = ctx.String("mint")
	}
	if len(mintURL) == 0 {
		mintURL = "http://127.0.0.1:3338"
	}

	return wallet.Config{WalletPath: path, CurrentMintURL: mintURL}
}

func setWalletPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		log.Fatal(err)
	}

	path := filepath.Join(homedir, ".chestnut")
	err = os.MkdirAll(path, 0700)
	if err != nil {
		log.Fatal(err)
	}

	return path
}

func setupWallet(ctx *cli.Context) error {
	config := walletConfig(ctx)

	var err error
	chestnut, err = wallet.LoadWallet(config)
	if err != nil {
		printErr(err)
	}

	return nil
}

// shutdownWallet waits for the background quote watcher before the
// process exits. Quotes redeemed at the mint but not yet stored would
// otherwise be lost.
func shutdownWallet(ctx *cli.Context) error {
	if chestnut != nil {
		return chestnut.Shutdown()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "chestnut",
		Usage: "cashu cli wallet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mint",
				Usage: "Mint to connect to",
			},
		},
		Before: setupWallet,
		After:  shutdownWallet,
		Commands: []*cli.Command{
			balanceCmd,
			invoiceCmd,
			checkInvoiceCmd,
			quotesCmd,
			sendCmd,
			receiveCmd,
			payCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		printErr(err)
	}
}

var balanceCmd = &cli.Command{
	Name:   "balance",
	Usage:  "Wallet balance",
	Action: getBalance,
}

func getBalance(ctx *cli.Context) error {
	balanceByMints := chestnut.GetBalanceByMints()
	if len(balanceByMints) > 1 {
		for mintURL, balance := range balanceByMints {
			fmt.Printf("%v: %v sats\n", mintURL, balance)
		}
	}

	fmt.Printf("%v sats\n", chestnut.GetBalance())
	return nil
}

var invoiceCmd = &cli.Command{
	Name:      "invoice",
	Usage:     "Request an invoice from the mint and mint ecash once it is paid",
	ArgsUsage: "[AMOUNT]",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the invoice to be paid",
			Value: 2 * time.Minute,
		},
		&cli.DurationFlag{
			Name:  "poll",
			Usage: "Interval between payment checks",
			Value: 5 * time.Second,
		},
	},
	Action: mintEcash,
}

func mintEcash(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to mint"))
	}
	amountStr := args.First()
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		printErr(err)
	}

	mintResponse, err := chestnut.RequestMint(amount)
	if err != nil {
		printErr(err)
	}

	fmt.Printf("invoice: %v\n\n", mintResponse.Request)
	fmt.Println("waiting for payment...")

	outcome, err := chestnut.WaitForInvoicePayment(mintResponse.Quote,
		ctx.Duration("timeout"), ctx.Duration("poll"))
	if err != nil {
		printErr(err)
	}

	if outcome.Reason == wallet.TimedOut {
		fmt.Println("invoice has not been paid yet")
		fmt.Printf("after paying it, run 'chestnut check-invoice %v' to mint the ecash\n",
			mintResponse.Quote)
		return nil
	}

	fmt.Printf("%v sats successfully minted\n", amount)
	return nil
}

var checkInvoiceCmd = &cli.Command{
	Name:      "check-invoice",
	Usage:     "Check a previously requested invoice and mint the ecash if it was paid",
	ArgsUsage: "[QUOTE ID]",
	Action:    checkInvoice,
}

func checkInvoice(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a quote id"))
	}
	quoteId := args.First()

	outcome, err := chestnut.CheckMintQuote(quoteId)
	if err != nil {
		printErr(err)
	}

	switch outcome.Reason {
	case wallet.StillPending:
		fmt.Println("invoice has not been paid yet")
	case wallet.AlreadyIssued:
		fmt.Println("ecash for this invoice was already minted")
	default:
		quote := chestnut.GetMintQuote(quoteId)
		if quote != nil {
			fmt.Printf("%v sats successfully minted\n", quote.Amount)
		} else {
			fmt.Println("ecash successfully minted")
		}
	}

	return nil
}

var quotesCmd = &cli.Command{
	Name:   "quotes",
	Usage:  "List mint quotes stored in the wallet",
	Action: listQuotes,
}

func listQuotes(ctx *cli.Context) error {
	quotes := chestnut.GetMintQuotes()
	if len(quotes) == 0 {
		fmt.Println("no mint quotes in wallet")
		return nil
	}

	for _, quote := range quotes {
		fmt.Printf("%v\n", quote.QuoteId)
		fmt.Printf("\tamount: %v\n", quote.Amount)
		fmt.Printf("\tstate: %v\n", quote.State)
		fmt.Printf("\tcreated: %v\n\n", time.Unix(quote.CreatedAt, 0).Format(time.RFC3339))
	}

	return nil
}

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "Generate a cashu token with the specified amount",
	ArgsUsage: "[AMOUNT]",
	Action:    send,
}

func send(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify an amount to send"))
	}
	amountStr := args.First()
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		printErr(err)
	}

	token, err := chestnut.Send(amount)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v\n", token)

	return nil
}

var receiveCmd = &cli.Command{
	Name:      "receive",
	Usage:     "Receive a cashu token",
	ArgsUsage: "[TOKEN]",
	Action:    receive,
}

func receive(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a token to receive"))
	}
	serializedToken := args.First()

	token, err := cashu.DecodeToken(serializedToken)
	if err != nil {
		printErr(err)
	}

	amount, err := chestnut.Receive(*token)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("%v sats received\n", amount)

	return nil
}

var payCmd = &cli.Command{
	Name:      "pay",
	Usage:     "Pay a lightning invoice",
	ArgsUsage: "[INVOICE]",
	Action:    pay,
}

func pay(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		printErr(errors.New("specify a lightning invoice to pay"))
	}
	invoice := args.First()

	meltResponse, err := chestnut.Melt(invoice)
	if err != nil {
		printErr(err)
	}
	fmt.Printf("invoice paid. preimage: %v\n", meltResponse.Preimage)

	return nil
}

func printErr(msg error) {
	// os.Exit skips the After hook
	if chestnut != nil {
		chestnut.Shutdown()
	}
	fmt.Println(msg.Error())
	os.Exit(1)
}
