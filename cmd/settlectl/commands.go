package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/paycode"
	"github.com/mmynk/settleup/internal/webhook"
)

// loadConfig reads the config named by --config, falling back to SETTLEUP_CONFIG.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("SETTLEUP_CONFIG")
	}
	return config.LoadFrom(path, os.Getenv)
}

func codecFor(cmd *cobra.Command) (*paycode.Codec, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Paycode.Prefix, _ = cmd.Flags().GetString("prefix")
	}
	if cmd.Flags().Changed("suffix") {
		cfg.Paycode.Suffix, _ = cmd.Flags().GetString("suffix")
	}
	if err := cfg.Paycode.Validate(); err != nil {
		return nil, err
	}
	return paycode.New(cfg.Paycode), nil
}

func addCodecFlags(cmd *cobra.Command) {
	cmd.Flags().String("prefix", "", "Payment code prefix (overrides config)")
	cmd.Flags().String("suffix", "", "Payment code suffix (overrides config)")
}

func encodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <creditor-id> <debtor-id> <year> <month>",
		Short: "Print the transfer description for a payment",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nums [4]int64
			for i, arg := range args {
				n, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid argument %q: %w", arg, err)
				}
				nums[i] = n
			}
			if nums[3] < 1 || nums[3] > 12 {
				return fmt.Errorf("invalid month %d", nums[3])
			}

			codec, err := codecFor(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), codec.Encode(paycode.Token{
				CreditorID: nums[0],
				DebtorID:   nums[1],
				Year:       int(nums[2]),
				Month:      int(nums[3]),
			}))
			return nil
		},
	}
	addCodecFlags(cmd)
	return cmd
}

func decodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <description>",
		Short: "Extract the payment token from a bank transfer description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFor(cmd)
			if err != nil {
				return err
			}
			tok, ok := codec.Decode(args[0])
			if !ok {
				return errors.New("no payment code found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	addCodecFlags(cmd)
	return cmd
}

// readPayload reads the file argument, or stdin for "-" or no argument.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func webhookSecret(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("secret") {
		return cmd.Flags().GetString("secret")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if cfg.Webhook.Secret == "" {
		return "", webhook.ErrMissingSecret
	}
	return cfg.Webhook.Secret, nil
}

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [payload-file]",
		Short: "Print a signature header for a webhook payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			secret, err := webhookSecret(cmd)
			if err != nil {
				return err
			}

			ts := time.Now()
			if unix, _ := cmd.Flags().GetInt64("timestamp"); unix > 0 {
				ts = time.Unix(unix, 0)
			}
			header, err := webhook.Sign([]byte(secret), ts, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), header)
			return nil
		},
	}
	cmd.Flags().String("secret", "", "Signing secret (default: webhook.secret from config)")
	cmd.Flags().Int64("timestamp", 0, "Unix timestamp to sign with (default: now)")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <header> [payload-file]",
		Short: "Check a webhook signature header against a payload",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args[1:])
			if err != nil {
				return err
			}
			secret, err := webhookSecret(cmd)
			if err != nil {
				return err
			}

			maxSkew, _ := cmd.Flags().GetDuration("max-skew")
			if err := webhook.NewVerifier(secret, maxSkew).Verify(args[0], payload); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return nil
		},
	}
	cmd.Flags().String("secret", "", "Signing secret (default: webhook.secret from config)")
	cmd.Flags().Duration("max-skew", 0, "Reject signatures older than this (0 disables)")
	return cmd
}
