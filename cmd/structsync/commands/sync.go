package commands

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/cmd/structsync/opts"
	"github.com/walteh/structsync/pkg/log"
	"github.com/walteh/structsync/pkg/sync"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd(o *opts.RootOpts) *cobra.Command {
	var name string
	var target string
	var varsJSON string
	var varFlags []string
	var overwrite bool
	var strict bool
	var reportPath string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Materialize a structure template into a target directory",
		Long: `Sync loads a named template and writes its directories and files into
the target, substituting {variable} tokens from --var and --vars.
Existing files are preserved or backed up according to the sync rules.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, cfg, err := o.OpenStore(ctx)
			if err != nil {
				return err
			}

			model, err := st.Load(ctx, name)
			if err != nil {
				return errors.Errorf("loading template: %w", err)
			}

			vars, err := parseVars(varsJSON, varFlags)
			if err != nil {
				return err
			}

			rules := cfg.SyncRules
			if overwrite {
				rules.PreserveExisting = false
			}

			syncOpts := []sync.Option{
				sync.WithReporter(log.New(os.Stdout, zerologLevel(o))),
			}
			if strict {
				syncOpts = append(syncOpts, sync.WithStrict())
			}

			report, syncErr := sync.New(rules, syncOpts...).Sync(ctx, model, target, vars)
			if report != nil {
				if reportPath != "" {
					if err := writeDocument(reportPath, report); err != nil {
						return errors.Errorf("writing report: %w", err)
					}
				}
				for _, v := range report.UnresolvedVars {
					o.UserLogger.Warning("unresolved template variable: {%s}", v)
				}
				o.UserLogger.Detail("created=%d overwritten=%d preserved=%d backed_up=%d skipped=%d failed=%d",
					report.Created, report.Overwritten, report.Preserved,
					report.BackedUp, report.Skipped, report.Failed)
			}
			if syncErr != nil {
				return errors.Errorf("syncing %q to %q: %w", name, target, syncErr)
			}
			if !report.Ok() {
				o.UserLogger.Warning("sync finished with %d failed entries", report.Failed)
				return nil
			}

			o.UserLogger.Success("Structure %q synced to %q", name, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "structure template name")
	cmd.Flags().StringVar(&target, "target", "", "target directory")
	cmd.Flags().StringVar(&varsJSON, "vars", "", "template variables as a JSON object")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "template variable as name=value (repeatable)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing files instead of preserving them")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any entry cannot be written")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the sync report to this path (.json or .yaml)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// parseVars merges the --vars JSON object with --var name=value pairs,
// the pairs taking precedence.
func parseVars(varsJSON string, varFlags []string) (map[string]string, error) {
	vars := map[string]string{}
	if varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &vars); err != nil {
			return nil, errors.Errorf("parsing --vars: %w", err)
		}
	}
	for _, pair := range varFlags {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("invalid --var %q, want name=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
