package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/metalego/contracts/config"
	"github.com/metalego/contracts/gateway/signer"
	"github.com/metalego/contracts/logger"
)

func main() {
	config.Init()
	cfg := config.Get()
	if err := logger.NewLogger(cfg.LogPath, cfg.Debug, cfg.SentryDsn); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "metalego",
		Usage: "NFT marketplace and tiered mint factory devnet",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Deploy the contracts on the devnet and serve the HTTP API",
				Action: func(c *cli.Context) error {
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()
					return serve(ctx, cfg)
				},
			},
			{
				Name:   "sign-mint",
				Usage:  "Sign a tier two or three mint authorization",
				Action: signMint,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "address that will call mint"},
					&cli.StringFlag{Name: "tier-asset", Required: true, Usage: "collection address of the tier"},
					&cli.StringFlag{Name: "recipient", Usage: "address receiving the token (defaults to caller)"},
					&cli.StringFlag{Name: "key", EnvVars: []string{"SIGNER_PRIVATE_KEY"}, Usage: "hex private key of the signer"},
				},
			},
			{
				Name:   "keygen",
				Usage:  "Generate a signer key pair",
				Action: keygen,
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to run command")
	}
}

func signMint(c *cli.Context) error {
	caller := c.String("caller")
	asset := c.String("tier-asset")
	recipient := c.String("recipient")
	if recipient == "" {
		recipient = caller
	}
	for _, addr := range []string{caller, asset, recipient} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid address %q", addr)
		}
	}
	if c.String("key") == "" {
		return fmt.Errorf("signer key is required (--key or SIGNER_PRIVATE_KEY)")
	}

	key, err := parseKey(c.String("key"))
	if err != nil {
		return fmt.Errorf("invalid signer key: %w", err)
	}
	sig, err := signer.SignMint(key, common.HexToAddress(caller), common.HexToAddress(asset), common.HexToAddress(recipient))
	if err != nil {
		return err
	}

	zap.S().Infof("Signed mint for %s by %s", recipient, crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Println(hexutil.Encode(sig))
	return nil
}

func keygen(c *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Printf("SIGNER_ADDRESS=%s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	fmt.Printf("SIGNER_PRIVATE_KEY=%s\n", hexutil.Encode(crypto.FromECDSA(key)))
	return nil
}
