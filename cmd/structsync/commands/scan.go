package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/cmd/structsync/opts"
	"github.com/walteh/structsync/pkg/scan"
)

// NewScanCmd creates the scan command.
func NewScanCmd(o *opts.RootOpts) *cobra.Command {
	var source string
	var name string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a directory into a structure template",
		Long: `Scan walks a source directory, captures its layout and file contents
as a structure template, and saves it under the given name. When no
name is given, the source directory's base name is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, cfg, err := o.OpenStore(ctx)
			if err != nil {
				return err
			}

			model, entryErrs, err := scan.New(cfg.SyncRules).Scan(ctx, source)
			if err != nil {
				return errors.Errorf("scanning %q: %w", source, err)
			}
			for _, e := range entryErrs {
				o.UserLogger.Warning("skipped %s: %s", e.Path, e.Err)
			}

			if name == "" {
				name = filepath.Base(filepath.Clean(source))
			}
			model.Name = name
			path, err := st.Save(ctx, model, name)
			if err != nil {
				return errors.Errorf("saving template: %w", err)
			}

			o.UserLogger.Success("Structure %q scanned and saved", name)
			o.UserLogger.Detail("Files: %d", model.CountFiles())
			o.UserLogger.Detail("Subdirectories: %d", model.CountDirs())
			o.UserLogger.Detail("Template saved to: %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source directory to scan")
	cmd.Flags().StringVar(&name, "name", "", "template name (default: source base name)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
