package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/gosuri/uitable"
	"github.com/oneconcern/slides/pkg/model"
	"github.com/spf13/cobra"
)

const (
	outputJSON  = "json"
	outputYAML  = "yaml"
	outputTable = "table"
)

func newManifestCmd(a *app) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "reads or replaces the slides manifest",
	}
	manifestCmd.AddCommand(
		newManifestGetCmd(a),
		newManifestPutCmd(a),
	)
	return manifestCmd
}

func checkOutput(format string) error {
	switch format {
	case outputJSON, outputYAML, outputTable:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use one of json, yaml or table", format)
	}
}

// render writes v to w in the requested format.
//
// table fills the rows of the table format, and may be nil when v has no tabular rendering.
func render(w io.Writer, format string, v interface{}, table func(*uitable.Table)) error {
	switch format {
	case outputYAML:
		// ghodss/yaml goes through json, so that item fields keep their json names
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case outputTable:
		if table != nil {
			t := uitable.New()
			t.MaxColWidth = 60
			t.Wrap = true
			table(t)
			_, err := fmt.Fprintln(w, t)
			return err
		}
		fallthrough
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

func itemsTable(items model.Manifest) func(*uitable.Table) {
	return func(t *uitable.Table) {
		t.AddRow("#", "SRC", "FIELDS")
		for i, item := range items {
			t.AddRow(i+1, item.Src(), itemFields(item))
		}
	}
}

func itemFields(item model.Item) string {
	var fields []string
	for _, k := range item.Keys() {
		if k == model.SrcKey {
			continue
		}
		v, _ := item.Get(k)
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte(fmt.Sprint(v))
		}
		fields = append(fields, k+"="+string(b))
	}
	return strings.Join(fields, " ")
}
