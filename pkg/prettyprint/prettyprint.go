package prettyprint

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Format is an output format for pretty printing
type Format string

const (
	// TemplateFormat produces text/template-based output
	TemplateFormat Format = "template"
	// JSONFormat produces JSON output
	JSONFormat Format = "json"
	// YAMLFormat produces YAML output
	YAMLFormat Format = "yaml"
)

// Formats lists all supported formats
var Formats = []Format{TemplateFormat, JSONFormat, YAMLFormat}

// Writer preconfigures the write function
type Writer struct {
	Out          io.Writer
	Format       Format
	FormatString string
}

// Write prints the input in the preconfigured way
func (w *Writer) Write(in interface{}) error {
	return Write(w.Out, in, w.Format, w.FormatString)
}

// Write prints an input value using the format to the writer
func Write(out io.Writer, in interface{}, format Format, formatString string) error {
	switch format {
	case TemplateFormat:
		return writeTemplate(out, in, formatString)
	case JSONFormat:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	case YAMLFormat:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		err := enc.Encode(in)
		if err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeTemplate renders the template with tab separated columns aligned
func writeTemplate(out io.Writer, in interface{}, tplc string) (err error) {
	tpl, err := template.New("template").Parse(tplc)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() {
		ferr := w.Flush()
		if err == nil {
			err = ferr
		}
	}()

	return tpl.Execute(w, in)
}
