package main

import (
	"context"
	"docqa-go/internal/app"
	"docqa-go/internal/config"
	"docqa-go/pkg/log"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Answer questions about PDF documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./configs/config.yaml", "path to config file")

	cmd.AddCommand(newAskCmd(opts), newIngestCmd(opts), newTokenCmd(opts))
	return cmd
}

// loadConfig 读取配置并初始化日志。
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	return cfg, nil
}

func (o *rootOptions) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
