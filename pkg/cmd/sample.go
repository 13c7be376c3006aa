package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stleox/beeline/pkg/sampler"
)

func newSampleCommand() *cobra.Command {
	var rate uint
	cmd := &cobra.Command{
		Use:   "sample <id>...",
		Short: "Print the deterministic sampling decision of each id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sampler.NewDeterministicSampler(rate)
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%t\n", id, s.Sample(id)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&rate, "rate", 1, "Keep 1 in rate ids")
	return cmd
}
