package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/barkprotocol/blinks"
	"github.com/barkprotocol/blinks/types"
)

func describeCmd() *cobra.Command {
	var (
		baseURL string
		to      string
		amount  string
	)

	cmd := &cobra.Command{
		Use:   "describe [action]",
		Short: "Print the descriptor of a configured action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := blinks.New(cfg, blinks.WithLogger(log))
			if err != nil {
				return err
			}
			defer b.Close()

			query := url.Values{}
			if to != "" {
				query.Set("to", to)
			}
			if amount != "" {
				query.Set("amount", amount)
			}

			if baseURL == "" {
				baseURL = cfg.Server.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost" + cfg.Server.Addr
			}

			descriptor, err := b.Describe(baseURL, args[0], query)
			if err != nil {
				return err
			}
			return printJSON(descriptor)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "origin used for hrefs")
	cmd.Flags().StringVar(&to, "to", "", "recipient override")
	cmd.Flags().StringVar(&amount, "amount", "", "extra preset amount")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the configured actions.json rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := blinks.New(cfg, blinks.WithLogger(log))
			if err != nil {
				return err
			}
			defer b.Close()

			return printJSON(types.RulesResponse{Rules: b.Rules().List()})
		},
	}
}

func verifyCmd() *cobra.Command {
	var (
		reference string
		amount    string
		splToken  string
	)

	cmd := &cobra.Command{
		Use:   "verify [signature...]",
		Short: "Verify payments on chain against a reference",
		Long: `Verify one or more transaction signatures against the merchant recipient
and a reference key. Without signatures the newest transaction that mentions
the reference is looked up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reference == "" {
				return fmt.Errorf("--reference is required")
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := blinks.New(cfg, blinks.WithLogger(log))
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := context.Background()
			if len(args) == 0 {
				result, err := b.VerifyReference(ctx, reference, amount, splToken)
				if err != nil {
					return err
				}
				return printJSON(result)
			}

			reqs := make([]*types.WebhookRequest, 0, len(args))
			for _, sig := range args {
				reqs = append(reqs, &types.WebhookRequest{
					Reference: reference,
					Signature: strings.TrimSpace(sig),
					Amount:    amount,
					SPLToken:  splToken,
				})
			}
			results, err := b.BatchVerify(ctx, reqs)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}

	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference public key")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "minimum expected amount")
	cmd.Flags().StringVar(&splToken, "spl-token", "", "token mint address")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
