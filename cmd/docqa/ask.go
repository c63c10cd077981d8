package main

import (
	"docqa-go/internal/pipeline"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var questions []string
	cmd := &cobra.Command{
		Use:   "ask <file.pdf>",
		Short: "Run the full pipeline once against a local document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(questions) == 0 {
				return fmt.Errorf("at least one --question is required")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Processor.Run(cmd.Context(), pipeline.Request{
				Document:  data,
				FileName:  filepath.Base(args[0]),
				Questions: questions,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "question to answer (repeatable)")
	return cmd
}
