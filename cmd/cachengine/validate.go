package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/KOMKZ/go-yogan-cache/engine"
	"github.com/KOMKZ/go-yogan-cache/errcode"
	"github.com/KOMKZ/go-yogan-cache/httpx"
	"github.com/KOMKZ/go-yogan-cache/kafka"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "校验配置而不启动任何组件",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, cmd.OutOrStdout())
		},
	}
}

func runValidate(cmd *cobra.Command, out io.Writer) error {
	root, err := parseRoot(cmd)
	if err != nil {
		return err
	}
	loader, err := buildLoader(root.configOptions(cmd.Flags(), nil, nil))
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	var failed bool
	check := func(section string, err error) {
		if err == nil {
			fmt.Fprintf(out, "✅ %s\n", section)
			return
		}
		failed = true
		fmt.Fprintf(out, "❌ %s: %s\n", section, err)
		if le, ok := errcode.As(err); ok {
			if fields, ok := le.Data()["fields"].(map[string]string); ok {
				for _, field := range slices.Sorted(maps.Keys(fields)) {
					fmt.Fprintf(out, "   %s: %s\n", field, fields[field])
				}
			}
		}
	}

	_, err = engine.LoadConfig(loader)
	check("engine", err)
	_, err = httpx.LoadConfig(loader)
	check("http", err)
	_, err = kafka.LoadConfig(loader)
	check("kafka", err)

	if files := loader.LoadedFiles(); len(files) > 0 {
		fmt.Fprintf(out, "files: %s\n", strings.Join(files, ", "))
	}
	if failed {
		return fmt.Errorf("配置无效")
	}
	return nil
}
