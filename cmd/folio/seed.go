package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSeedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the initial guest when the guest list is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			seeded, err := store.SeedGuests(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "seeded guest list")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "guest list not empty, nothing to do")
			}
			return nil
		},
	}
}
