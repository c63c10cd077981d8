package main

import (
	"docqa-go/pkg/tasks"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "ingest <file-or-dir>...",
		Short: "Store documents and enqueue them for pre-ingestion",
		Long: "Writes each document to object storage and sends an ingest task to Kafka. " +
			"Directories are walked recursively. With --wait the documents are ingested in-process instead.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if !wait && a.Producer == nil {
				return fmt.Errorf("kafka is disabled; use --wait to ingest in-process")
			}

			files, err := collectFiles(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				name := filepath.Base(path)
				if wait {
					ing, err := a.Processor.Ingest(cmd.Context(), data, name)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					fmt.Fprintf(out, "%s\t%s\tingested (cache hit: %t)\n", ing.Fingerprint, name, ing.CacheHit)
					continue
				}

				staged, err := a.Processor.Stage(cmd.Context(), data, name)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				task := tasks.NewIngestTask(staged.Fingerprint, a.Store.Bucket(), staged.Key, staged.FileName)
				if err := a.Producer.Produce(cmd.Context(), task); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(out, "%s\t%s\tenqueued (task %s)\n", staged.Fingerprint, name, task.TaskID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "ingest in-process instead of enqueueing")
	return cmd
}

// collectFiles 展开参数中的目录，跳过隐藏文件。
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || d.Name()[0] == '.' {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
