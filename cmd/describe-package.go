package cmd

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpod-io/wheelcache/pkg/prettyprint"
	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
)

// describePackageCmd represents the describePackage command
var describePackageCmd = &cobra.Command{
	Use:   "package <name>",
	Short: "Describes the fingerprint inputs of a package",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		packagesDir, _ := cmd.Flags().GetString("packages-dir")
		cfg, err := getConfig(packagesDir)
		if err != nil {
			log.Fatal(err)
		}

		ws, err := wheelcache.LoadWorkspace(context.Background(), cfg)
		if err != nil {
			log.Fatal(err)
		}
		if _, exists := ws.Recipes[args[0]]; !exists {
			log.Fatalf("package \"%s\" does not exist", args[0])
		}

		w := getWriterFromFlags(cmd)
		if w.Format == prettyprint.TemplateFormat && w.FormatString == "" {
			w.FormatString = `Name:{{"\t"}}{{ .Name }}
Kind:{{"\t"}}{{ .Kind }}
Always Rebuilt:{{"\t"}}{{ .AlwaysRebuild }}
{{ if .Source.URL }}URL:{{"\t"}}{{ .Source.URL }}
{{ end -}}
{{ if .Source.Path }}Path:{{"\t"}}{{ .Source.Path }}
{{ end -}}
{{ if .Source.Files -}}
Files:
{{- range $k, $v := .Source.Files }}
{{"\t"}}{{ $v -}}
{{ end }}
{{ end -}}
Toolchain Hash:{{"\t"}}{{ .ToolchainHash }}
Recipe Hash:{{"\t"}}{{ .RecipeHash }}
Fingerprint:{{"\t"}}{{ .Fingerprint }}
{{ if .Dependencies -}}
Dependencies:
{{- range $k, $v := .Dependencies }}
{{"\t"}}{{ $v.Name -}}{{"\t"}}{{ $v.Fingerprint -}}
{{ end -}}
{{ end }}
`
		}

		desc, err := newPackageDescription(ws, args[0])
		if err != nil {
			log.Fatal(err)
		}
		err = w.Write(desc)
		if err != nil {
			log.Fatal(err)
		}
	},
}

type packageDescription struct {
	Name          string                  `json:"name" yaml:"name"`
	Kind          wheelcache.BuildKind    `json:"kind" yaml:"kind"`
	AlwaysRebuild bool                    `json:"alwaysRebuild" yaml:"alwaysRebuild"`
	Source        sourceDescription       `json:"source" yaml:"source"`
	ToolchainHash string                  `json:"toolchainHash" yaml:"toolchainHash"`
	RecipeHash    string                  `json:"recipeHash" yaml:"recipeHash"`
	Fingerprint   string                  `json:"fingerprint" yaml:"fingerprint"`
	Dependencies  []dependencyDescription `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

type sourceDescription struct {
	URL     string   `json:"url,omitempty" yaml:"url,omitempty"`
	SHA256  string   `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	Patches []string `json:"patches,omitempty" yaml:"patches,omitempty"`
	Extras  []string `json:"extras,omitempty" yaml:"extras,omitempty"`
	Files   []string `json:"files,omitempty" yaml:"files,omitempty"`
}

type dependencyDescription struct {
	Name        string `json:"name" yaml:"name"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

func newPackageDescription(ws *wheelcache.Workspace, name string) (packageDescription, error) {
	recipe := ws.Recipes[name]
	files, err := recipe.SourceManifest()
	if err != nil {
		return packageDescription{}, err
	}

	res := packageDescription{
		Name:          name,
		Kind:          recipe.Kind,
		AlwaysRebuild: recipe.AlwaysRebuild,
		Source: sourceDescription{
			URL:     recipe.Source.URL,
			SHA256:  recipe.Source.SHA256,
			Path:    recipe.Source.Path,
			Patches: recipe.Source.Patches,
			Files:   files,
		},
		ToolchainHash: ws.ToolchainHash,
		RecipeHash:    ws.RecipeHashes[name],
		Fingerprint:   ws.Fingerprints[name],
	}
	for _, e := range recipe.Source.Extras {
		res.Source.Extras = append(res.Source.Extras, e.Src)
	}
	for _, dep := range ws.Graph.Dependencies(name) {
		res.Dependencies = append(res.Dependencies, dependencyDescription{
			Name:        dep,
			Fingerprint: ws.Fingerprints[dep],
		})
	}
	return res, nil
}

func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", string(prettyprint.TemplateFormat), "the description format. Valid choices are: template, json or yaml")
	cmd.Flags().StringP("format-string", "t", "", "format string to use, e.g. the template")
}

func getWriterFromFlags(cmd *cobra.Command) *prettyprint.Writer {
	format, _ := cmd.Flags().GetString("format")
	formatString, _ := cmd.Flags().GetString("format-string")
	return &prettyprint.Writer{
		Out:          os.Stdout,
		Format:       prettyprint.Format(format),
		FormatString: formatString,
	}
}

func init() {
	describeCmd.AddCommand(describePackageCmd)
	addFormatFlags(describePackageCmd)
}
