package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"reel-recipe-go/internal/prompt"
)

func newPromptCommand() *cobra.Command {
	var description string
	var transcript string
	var transcriptFile string

	cmd := &cobra.Command{
		Use:         "prompt",
		Short:       "Print the generation prompt for a description and transcript",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if transcriptFile != "" {
				data, err := readInput(cmd.InOrStdin(), transcriptFile)
				if err != nil {
					return err
				}
				transcript = strings.TrimSpace(string(data))
			}
			fmt.Fprint(cmd.OutOrStdout(), prompt.BuildRecipe(description, transcript))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Post caption")
	cmd.Flags().StringVarP(&transcript, "transcript", "t", "", "Audio transcript")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "Read the transcript from a file, - for stdin")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
