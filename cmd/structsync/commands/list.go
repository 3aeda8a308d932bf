package commands

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/cmd/structsync/opts"
)

// NewListCmd creates the list command.
func NewListCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available structure templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, _, err := o.OpenStore(ctx)
			if err != nil {
				return err
			}

			infos, err := st.List(ctx)
			if err != nil {
				return errors.Errorf("listing templates: %w", err)
			}
			if len(infos) == 0 {
				o.UserLogger.Step("No structure templates found")
				o.UserLogger.Detail("Use the scan command to create templates from existing directories")
				return nil
			}

			o.UserLogger.Step("Available structure templates:")
			for _, info := range infos {
				o.UserLogger.Detail("• %s", info.Name)
				o.UserLogger.Detail("  Files: %d, Subdirs: %d", info.Files, info.Subdirs)
				if info.CreatedAt != "" {
					o.UserLogger.Detail("  Created: %s", info.CreatedAt)
				}
				if info.Description != "" {
					o.UserLogger.Detail("  %s", info.Description)
				}
			}
			return nil
		},
	}
	return cmd
}
