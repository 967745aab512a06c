package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"time26/rewards"
)

// settleCmd runs one settlement outside the cron endpoint, e.g. to backfill a missed day
func settleCmd() *cobra.Command {
	var day string
	settle := &cobra.Command{
		Use:   "settle",
		Short: "Settle one UTC day of drawing time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if day == "" {
				day = rewards.PreviousDayID(time.Now())
			}
			result, err := a.services.Settlement.Settle(cmd.Context(), day)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	settle.Flags().StringVar(&day, "day", "", "day to settle as YYYY-MM-DD (default: previous UTC day)")
	return settle
}

func merkleCmd() *cobra.Command {
	subCmd := &cobra.Command{
		Use:   "merkle",
		Short: "Claim tree commands",
	}

	rootCmd := &cobra.Command{
		Use:   "root",
		Short: "Rebuild the claim tree and publish its root on-chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.services.Claim.PushRoot(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	proofCmd := &cobra.Command{
		Use:   "proof <wallet>",
		Short: "Print the claim proof for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			proof, err := a.services.Claim.GetClaimProof(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, proof)
		},
	}

	subCmd.AddCommand(rootCmd, proofCmd)
	return subCmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-mints",
		Short: "Resolve sponsored mints whose outcome is not yet known",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.services.Gasless.ReconcilePending(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}
