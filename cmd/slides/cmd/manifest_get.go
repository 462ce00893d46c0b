package cmd

import (
	"github.com/spf13/cobra"
)

func newManifestGetCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "prints the items of the manifest",
		Long: `Prints the items of the manifest.

A manifest stored in a legacy shape (a list of paths, or an object with a "slides" list) is printed as a list of objects.
A missing manifest is printed as an empty list.
`,
		Example: `# print the manifest as a table
slides manifest get --output table

# read the manifest from a local directory instead of GitHub
slides manifest get --backend localfs --local-dir ./deck`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkOutput(output)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			svc, err := a.manifestService()
			if err != nil {
				return err
			}
			res, err := svc.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			return render(a.out, output, res, itemsTable(res.Items))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json, yaml or table")
	return cmd
}
