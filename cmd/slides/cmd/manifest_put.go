package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/gosuri/uitable"
	"github.com/oneconcern/slides/pkg/core"
	"github.com/oneconcern/slides/pkg/model"
	"github.com/spf13/cobra"
)

func newManifestPutCmd(a *app) *cobra.Command {
	var (
		file        string
		deleteFiles bool
		output      string
	)

	cmd := &cobra.Command{
		Use:   "put",
		Short: "replaces the items of the manifest",
		Long: `Replaces the items of the manifest with the JSON list read from a file, or from stdin with "--file -".

Each item is either a path, or an object with a "src" field. Other fields are kept as is.
With --delete-files, the files of the slides no longer listed are deleted from the repository.
`,
		Example: `slides manifest put --file manifest.json --delete-files`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return checkOutput(output)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			items, err := model.DecodeItems(data)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			svc, err := a.manifestService()
			if err != nil {
				return err
			}
			res, err := svc.Replace(cmd.Context(), core.ReplaceRequest{
				Items:       items,
				DeleteFiles: deleteFiles,
			})
			if err != nil {
				return err
			}
			return render(a.out, output, res, replaceTable(res))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "the JSON file holding the list of items, - for stdin")
	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "delete the files of the slides removed from the manifest")
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json, yaml or table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func replaceTable(res *core.ReplaceResult) func(*uitable.Table) {
	return func(t *uitable.Table) {
		t.AddRow("COMMIT", res.CommitSHA)
		t.AddRow("REMOVED", res.Removed)
		t.AddRow("DELETED FILES", res.DeletedFiles)
		for _, f := range res.FailedFiles {
			t.AddRow("FAILED", f)
		}
	}
}
