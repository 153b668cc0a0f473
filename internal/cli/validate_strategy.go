package cli

import (
	"fmt"

	"github.com/spacemake-go/mapplan/internal/strategy"
	"github.com/spacemake-go/mapplan/pkg/model"
	"github.com/spf13/cobra"
)

func newValidateStrategyCmd() *cobra.Command {
	var finalToken string

	cmd := &cobra.Command{
		Use:   "validate-strategy <strategy>",
		Short: "Parse a mapping strategy string and print its rules and symlinks",
		Long:  "Parses a mapping-strategy DSL string locally, without contacting the server, and reports the rules and symlinks it expands to.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			final := finalToken
			if final == "" {
				final = "final"
			}

			result, err := strategy.Parse(args[0], model.UBAMName, final, strategy.LastWins)
			if err != nil {
				return fmt.Errorf("invalid strategy: %w", err)
			}

			fmt.Printf("Strategy: %s\n", args[0])
			fmt.Println("  Rules:")
			for _, rule := range result.Rules {
				fmt.Printf("    %s -> %s (%s", rule.InputName, rule.OutName, rule.Mapper)
				if rule.Label != "" {
					fmt.Printf(", label=%s", rule.Label)
				}
				fmt.Println(")")
			}

			if len(result.Symlinks) > 0 {
				fmt.Println("  Symlinks:")
				for _, sym := range result.Symlinks {
					fmt.Printf("    %s -> %s\n", sym.LinkName, sym.LinkSrc)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&finalToken, "final", "", "Final artifact token (default \"final\")")
	return cmd
}
