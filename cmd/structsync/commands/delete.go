package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/cmd/structsync/opts"
)

// NewDeleteCmd creates the delete command.
func NewDeleteCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a structure template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, _, err := o.OpenStore(ctx)
			if err != nil {
				return err
			}
			if err := st.Delete(ctx, args[0]); err != nil {
				return errors.Errorf("deleting template: %w", err)
			}
			o.UserLogger.Success("Template %q deleted", args[0])
			return nil
		},
	}
	return cmd
}
