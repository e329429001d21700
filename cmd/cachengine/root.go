package main

import (
	"github.com/KOMKZ/go-yogan-cache/config"
	"github.com/KOMKZ/go-yogan-cache/di"
	"github.com/KOMKZ/go-yogan-cache/flagx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootOptions persistent flags shared by every subcommand
type rootOptions struct {
	ConfigDir string `flag:"config"`
	EnvPrefix string `flag:"env-prefix"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachengine",
		Short:         "多层缓存引擎",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "./configs", "配置目录（config.yaml 与 <env>.yaml）")
	root.PersistentFlags().String("env-prefix", "CACHENGINE", "环境变量前缀")

	root.AddCommand(newServeCmd(), newReportCmd(), newValidateCmd())
	return root
}

func parseRoot(cmd *cobra.Command) (rootOptions, error) {
	var opts rootOptions
	err := flagx.ParseFlags(cmd, &opts)
	return opts, err
}

// configOptions layers changed flags over the files; bindings map flag
// names onto config keys
func (o rootOptions) configOptions(flags *pflag.FlagSet, bindings map[string]string, defaults map[string]any) di.ConfigOptions {
	return di.ConfigOptions{
		ConfigPath:   o.ConfigDir,
		EnvPrefix:    o.EnvPrefix,
		Defaults:     defaults,
		Flags:        flags,
		FlagBindings: bindings,
	}
}

func buildLoader(opts di.ConfigOptions) (*config.Loader, error) {
	return config.NewLoaderBuilder().
		WithConfigPath(opts.ConfigPath).
		WithEnvPrefix(opts.EnvPrefix).
		WithDefaults(opts.Defaults).
		WithFlags(opts.Flags, opts.FlagBindings).
		Build()
}
