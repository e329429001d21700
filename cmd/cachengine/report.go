package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/KOMKZ/go-yogan-cache/di"
	"github.com/KOMKZ/go-yogan-cache/flagx"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/cobra"
)

// reportOptions flags of `cachengine report`
type reportOptions struct {
	Format string `flag:"format,f" default:"json" usage:"输出格式：json 或 text"`
	Warm   bool   `flag:"warm" default:"true" usage:"报告前启动引擎（预热关键数据）"`
}

func (o reportOptions) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Format, validation.Required, validation.In("json", "text")),
	)
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "采样各缓存层并输出综合报告",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cmd, cmd.OutOrStdout())
		},
	}
	if err := flagx.BindFlags(cmd, &reportOptions{}); err != nil {
		panic(err)
	}
	return cmd
}

func runReport(ctx context.Context, cmd *cobra.Command, out io.Writer) (err error) {
	root, err := parseRoot(cmd)
	if err != nil {
		return err
	}
	var opts reportOptions
	if err := flagx.ParseFlags(cmd, &opts); err != nil {
		return err
	}

	// stdout carries the report
	defaults := map[string]any{"logger.enable_console": false}
	app := di.NewDoApplication(di.WithConfigOptions(root.configOptions(cmd.Flags(), nil, defaults)))
	if err := app.Setup(); err != nil {
		return err
	}
	defer func() {
		if serr := app.Shutdown(context.Background()); err == nil {
			err = serr
		}
	}()

	if opts.Warm {
		if err := app.Start(ctx); err != nil {
			return err
		}
	}
	e, err := app.Engine()
	if err != nil {
		return err
	}
	rep := e.Report(ctx)

	if opts.Format == "text" {
		return writeTextReport(out, rep)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func writeTextReport(out io.Writer, rep metrics.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "LAYER\tAVAILABLE\tHIT RATE\tSIZE\tCAPACITY\tUTILIZATION\tEVICTIONS\n")
	for _, l := range rep.Layers {
		fmt.Fprintf(tw, "%s\t%t\t%.1f%%\t%d\t%d\t%.1f%%\t%d\n",
			l.Layer, l.Available, l.HitRate*100, l.Size, l.Capacity, l.Utilization*100, l.Evictions)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.Alerts) > 0 {
		fmt.Fprintln(out, "\nALERTS")
		for _, a := range rep.Alerts {
			fmt.Fprintf(out, "  [%s] %s %s: %s\n", a.Severity, a.Layer, a.Metric, a.Message)
		}
	}
	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(out, "\nRECOMMENDATIONS")
		for _, r := range rep.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return nil
}
