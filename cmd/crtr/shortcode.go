package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"reel-recipe-go/internal/shortcode"
)

func newShortcodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "shortcode <reel-url>",
		Short:       "Print the identifier crtr would use for a reel URL",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id := shortcode.Resolve(args[0])
			if id == "" {
				return fmt.Errorf("no identifier in %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			if !shortcode.IsCanonical(args[0]) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: not a recognised reel URL, using the input as is")
			}
			return nil
		},
	}
}
