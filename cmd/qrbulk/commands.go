package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/QRBulk/internal/config"
	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/logging"
	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

type generateFlags struct {
	sheet    string
	format   string
	size     int
	style    string
	logo     string
	logoSize int
	maps     []string
	consts   []string
	output   string
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "qrbulk",
		Short:         "Generate one QR code per row of a CSV or spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.SetupWriter(cmd.ErrOrStderr(), level, "text")
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log run progress to stderr")

	root.AddCommand(newSheetsCmd(), newHeadersCmd(), newGenerateCmd())
	return root
}

func newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets FILE",
		Short: "List the sheets of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(args[0])
			if err != nil {
				return report(cmd, err)
			}
			defer src.Close()

			for _, name := range src.SheetNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newHeadersCmd() *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "headers FILE",
		Short: "Print the header row with first-row values and the automatic field mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openSource(args[0])
			if err != nil {
				return report(cmd, err)
			}
			defer src.Close()

			ds, err := src.Dataset(sheet)
			if err != nil {
				return report(cmd, err)
			}

			out := cmd.OutOrStdout()
			first := ds.First()
			for _, h := range ds.Headers {
				fmt.Fprintf(out, "%s\t%s\n", h, ds.Value(first, h))
			}
			fmt.Fprintln(out)

			auto := mapping.AutoMap(ds.Headers)
			for _, slot := range mapping.Slots() {
				col := "-"
				if b := auto.Get(slot); b.IsSet() {
					col = b.Column
				}
				fmt.Fprintf(out, "%-10s %s\n", slot+":", col)
			}
			fmt.Fprintf(out, "\n%d rows\n", ds.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Render every row and write a zip archive",
		Long: `Render one QR code per row and write them to a zip archive.

Fields are mapped automatically from the header row. Use --map to bind a
field to a column and --const to give every row the same text, e.g.

  qrbulk generate people.xlsx --map url=Profile --const platform=Telegram`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.sheet, "sheet", "", "Sheet to read (default: first)")
	fl.StringVar(&f.format, "format", "png", "Output format: svg, png or jpeg")
	fl.IntVar(&f.size, "size", 0, "Export size in pixels (default: BATCH_DEFAULT_EXPORT_SIZE)")
	fl.StringVar(&f.style, "style", "", "TOML style preset")
	fl.StringVar(&f.logo, "logo", "", "Logo image to place in the center")
	fl.IntVar(&f.logoSize, "logo-size", 0, "Logo size on the preview canvas (default: BATCH_DEFAULT_LOGO_SIZE)")
	fl.StringArrayVar(&f.maps, "map", nil, "Bind a field to a column: slot=Header (repeatable)")
	fl.StringArrayVar(&f.consts, "const", nil, "Bind a field to fixed text: slot=value (repeatable)")
	fl.StringVarP(&f.output, "output", "o", "", "Archive path (default: generated name in the current directory)")
	return cmd
}

func runGenerate(cmd *cobra.Command, path string, f generateFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(f.format)
	if err != nil {
		return err
	}

	svc := core.NewService(core.OptionsFromConfig(cfg), nil)
	defer svc.Shutdown(context.Background())

	style, err := buildStyle(svc.BaseStyle(), f)
	if err != nil {
		return report(cmd, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := svc.CreateSession(ctx, filepath.Base(path), data)
	if err != nil {
		return report(cmd, err)
	}
	if f.sheet != "" {
		if info, err = svc.SelectSheet(info.ID, f.sheet); err != nil {
			return report(cmd, err)
		}
	}

	m, err := applyBindings(info.Mapping, f.maps, f.consts)
	if err != nil {
		return err
	}
	if _, err := svc.SetMapping(info.ID, m); err != nil {
		return report(cmd, err)
	}

	result, err := svc.Generate(ctx, info.ID, style, format)
	if result != nil {
		printReport(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return report(cmd, err)
	}

	dl, err := svc.TakeDownload(result.RunID)
	if err != nil {
		return report(cmd, err)
	}
	out := f.output
	if out == "" {
		out = dl.Name
	}
	if err := os.WriteFile(out, dl.Data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}

// buildStyle applies the preset file, then the individual flags.
func buildStyle(base render.Style, f generateFlags) (render.Style, error) {
	style := base
	if f.style != "" {
		s, err := render.LoadStyleFile(f.style, style)
		if err != nil {
			return style, err
		}
		style = s
	}
	if f.size > 0 {
		style.ExportSize = f.size
	}
	if f.logo != "" {
		if err := style.LoadLogo(f.logo); err != nil {
			return style, err
		}
	}
	if f.logoSize > 0 {
		style.LogoPixelSize = f.logoSize
	}
	return style, style.Validate()
}

// applyBindings overlays slot=Header and slot=value flags on m. Header
// names are trimmed; literal text is kept as typed.
func applyBindings(m mapping.Mapping, maps, consts []string) (mapping.Mapping, error) {
	apply := func(flags []string, bind func(string) mapping.Binding, trim bool) error {
		for _, arg := range flags {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("binding %q: want slot=value", arg)
			}
			slot, err := mapping.ParseSlot(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			if trim {
				value = strings.TrimSpace(value)
			}
			m = m.Set(slot, bind(value))
		}
		return nil
	}

	if err := apply(maps, mapping.Column, true); err != nil {
		return m, err
	}
	if err := apply(consts, mapping.Custom, false); err != nil {
		return m, err
	}
	return m, nil
}

func printReport(w io.Writer, r *core.RunReport) {
	fmt.Fprintf(w, "rows %d, generated %d, skipped %d, dropped %d, errors %d (%d ms)\n",
		r.Total, r.Generated, r.Skipped, r.Dropped, len(r.Errors), r.DurationMS)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  row %d (%s): %s\n", e.Row, e.Label, e.Reason)
	}
}

func openSource(path string) (*tabular.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return tabular.Open(filepath.Base(path), data)
}

// report prints the user-facing message for err and returns err so the
// command exits non-zero.
func report(cmd *cobra.Command, err error) error {
	msg := core.MapError(err)
	if msg.Code == "ERR000" {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", core.FormatUserError(err))
	var loadErr *tabular.LoadError
	if errors.As(err, &loadErr) || errors.Is(err, render.ErrInvalidStyle) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", err)
	}
	return err
}
