package main

import (
	"fmt"
	"io"
	"strings"

	virtualizarr "github.com/TuSKan/go-virtualizarr"
	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/kerchunk"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var errUsage = errors.New("invalid arguments")

// newCommand creates the command tree:
//   - virtualizarr sniff FILE...
//   - virtualizarr inspect SOURCE
//   - virtualizarr concat --dim DIM -o OUT SOURCE...
//   - virtualizarr translate IN OUT
//
// Global flags: --skip-inline, --quiet
func newCommand() *cobra.Command {
	var (
		skipInline bool
		quiet      bool
	)
	options := func() []virtualizarr.Option {
		var opts []virtualizarr.Option
		if skipInline {
			opts = append(opts, virtualizarr.WithInlinePolicy(kerchunk.InlineSkip))
		}
		if quiet {
			opts = append(opts, virtualizarr.WithLogger(base.NoopLogger{}))
		}
		return opts
	}

	cmd := &cobra.Command{
		Use:           "virtualizarr",
		Short:         "Virtual Zarr datasets over existing files",
		Long:          "Inspect, combine and re-encode kerchunk reference documents.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&skipInline, "skip-inline", false, "Drop inline chunk data instead of failing")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log messages")

	cmd.AddCommand(sniffCmd(options))
	cmd.AddCommand(inspectCmd(options))
	cmd.AddCommand(concatCmd(options))
	cmd.AddCommand(translateCmd())
	return cmd
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.Wrapf(errUsage, "%s takes %d arguments, got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return errors.Wrapf(errUsage, "%s takes at least %d arguments, got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func sniffCmd(options func() []virtualizarr.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "sniff FILE...",
		Short: "Print the format of each file",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			for _, path := range args {
				ft, err := virtualizarr.SniffFileType(ctx, path, options()...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", path, ft)
			}
			return nil
		},
	}
}

func inspectCmd(options func() []virtualizarr.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect SOURCE",
		Short: "Summarize the variables of a reference document or store",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := virtualizarr.OpenVirtualDataset(cmd.Context(), args[0], options()...)
			if err != nil {
				return err
			}
			return printDataset(cmd.OutOrStdout(), ds)
		},
	}
}

func printDataset(w io.Writer, ds *dataset.Dataset) error {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Variable", "Dims", "Shape", "Chunks", "Dtype", "Stored", "Referenced", "Files", "Fingerprint"})
	tbl.SetAutoWrapText(false)
	for _, name := range ds.Names() {
		v, err := ds.Get(name)
		if err != nil {
			return err
		}
		m := v.Data.Manifest()
		grid := 1
		for _, n := range v.Data.ZArray().GridShape() {
			grid *= n
		}
		tbl.Append([]string{
			name,
			strings.Join(v.Dims, ","),
			fmt.Sprint(v.Data.Shape()),
			fmt.Sprint(v.Data.Chunks()),
			v.Data.Dtype().String(),
			fmt.Sprintf("%d/%d", m.Len(), grid),
			humanize.IBytes(uint64(m.TotalLength())),
			humanize.Comma(int64(len(m.Paths()))),
			m.Fingerprint().Short(),
		})
	}
	tbl.Render()
	return nil
}

func concatCmd(options func() []virtualizarr.Option) *cobra.Command {
	var (
		dim    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "concat --dim DIM -o OUT SOURCE...",
		Short: "Concatenate datasets along a dimension into one reference document",
		Args:  minimumArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dim == "" || output == "" {
				return errors.Wrapf(errUsage, "--dim and --output are required")
			}
			ctx := cmd.Context()
			datasets := make([]*dataset.Dataset, len(args))
			for i, path := range args {
				ds, err := virtualizarr.OpenVirtualDataset(ctx, path, options()...)
				if err != nil {
					return err
				}
				datasets[i] = ds
			}
			combined, err := dataset.Concat(datasets, dim)
			if err != nil {
				return err
			}
			refs, err := virtualizarr.ToKerchunk(ctx, combined, virtualizarr.WithPath(output))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d references to %s\n", len(refs.Refs), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&dim, "dim", "", "Dimension to concatenate along")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output reference document (.json or .json.zst)")
	return cmd
}

func translateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate IN OUT",
		Short: "Re-encode a reference document, compressing it when OUT ends in .zst",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			refs, err := kerchunk.ReadRefsFile(ctx, args[0])
			if err != nil {
				return err
			}
			return kerchunk.WriteRefsFile(ctx, args[1], refs)
		},
	}
}
