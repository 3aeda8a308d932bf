package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/structsync/cmd/structsync/opts"
	"github.com/walteh/structsync/pkg/diff"
	"github.com/walteh/structsync/pkg/structure"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd(o *opts.RootOpts) *cobra.Command {
	var templateA string
	var templateB string
	var dir string
	var reportPath string
	var failOnDiff bool

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two structure templates, or a template with a directory",
		Long: `Compare computes the structural delta between two saved templates, or
between a template and a live directory scanned on the fly. Comparison
is against raw, pre-substitution content; to diff materialized output,
compare against the target directory itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if templateB == "" && dir == "" {
				return errors.Errorf("either --template-b or --dir is required")
			}

			st, cfg, err := o.OpenStore(ctx)
			if err != nil {
				return err
			}

			var result *diff.Result
			other := dir
			if dir != "" {
				modelA, err := st.Load(ctx, templateA)
				if err != nil {
					return errors.Errorf("loading template %q: %w", templateA, err)
				}
				res, entryErrs, err := diff.CompareWithDirectory(ctx, modelA, dir, cfg.SyncRules)
				if err != nil {
					return err
				}
				for _, e := range entryErrs {
					o.UserLogger.Warning("skipped %s: %s", e.Path, e.Err)
				}
				result = res
			} else {
				// The two templates are independent models, so their
				// loads can run concurrently.
				var modelA, modelB *structure.Model
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					m, err := st.Load(gctx, templateA)
					if err != nil {
						return errors.Errorf("loading template %q: %w", templateA, err)
					}
					modelA = m
					return nil
				})
				g.Go(func() error {
					m, err := st.Load(gctx, templateB)
					if err != nil {
						return errors.Errorf("loading template %q: %w", templateB, err)
					}
					modelB = m
					return nil
				})
				if err := g.Wait(); err != nil {
					return err
				}
				result = diff.Compare(modelA, modelB)
				other = templateB
			}

			if reportPath != "" {
				if err := writeDocument(reportPath, result); err != nil {
					return errors.Errorf("writing report: %w", err)
				}
			}

			printDiff(o, templateA, other, result)

			if failOnDiff && !result.Empty() {
				return errors.Errorf("structures differ")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&templateA, "template-a", "", "first structure template")
	cmd.Flags().StringVar(&templateB, "template-b", "", "second structure template")
	cmd.Flags().StringVar(&dir, "dir", "", "directory to compare with instead of --template-b")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the diff result to this path (.json or .yaml)")
	cmd.Flags().BoolVar(&failOnDiff, "fail-on-diff", false, "exit non-zero when the structures differ")
	_ = cmd.MarkFlagRequired("template-a")
	return cmd
}

// printDiff renders a diff result in the classic +/-/~ listing.
func printDiff(o *opts.RootOpts, a, b string, result *diff.Result) {
	o.UserLogger.Step("Comparison between " + a + " and " + b + ":")

	if result.Empty() {
		o.UserLogger.Success("No differences found")
		return
	}
	for _, f := range result.FilesAdded {
		o.UserLogger.Detail("+ %s", f)
	}
	for _, f := range result.FilesRemoved {
		o.UserLogger.Detail("- %s", f)
	}
	for _, c := range result.FilesModified {
		o.UserLogger.Detail("~ %s", c.Path)
	}
	for _, d := range result.DirsAdded {
		o.UserLogger.Detail("+ %s/", d)
	}
	for _, d := range result.DirsRemoved {
		o.UserLogger.Detail("- %s/", d)
	}
	o.UserLogger.Detail("unchanged: %d", result.Unchanged)
}
