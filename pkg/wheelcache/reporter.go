package wheelcache

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/segmentio/textio"
)

const summaryIndent = "  "

// PrintPlanSummary writes a human readable summary of a build plan to out
func PrintPlanSummary(out io.Writer, dest string, plan *BuildPlan) error {
	_, err := io.WriteString(out, color.Sprintf("<green>build plan written</> <gray>(%s)</>\n", dest))
	if err != nil {
		return err
	}

	w := textio.NewPrefixWriter(out, summaryIndent)
	fmt.Fprintf(w, "toolchain hash:\t%s\n", shortHash(plan.ToolchainHash))
	fmt.Fprintf(w, "total packages:\t%d\n", len(plan.Fingerprints))
	fmt.Fprintf(w, "always rebuilt:\t%s\n", formatNames(plan.CrossBuildPackages))
	fmt.Fprintf(w, "library packages:\t%d\n", len(plan.LibraryPackages))
	fmt.Fprintf(w, "unique fingerprints:\t%d\n", countUnique(plan.Fingerprints))
	return w.Flush()
}

// PrintRestoreSummary writes a human readable summary of a restore run to out
func PrintRestoreSummary(out io.Writer, r *RestoreReport) error {
	header := color.Sprintf("<fg=yellow>cache restore summary</>\n")
	if r.ColdStart {
		header = color.Sprintf("<fg=yellow>cache restore summary</> <gray>(cold start, no cache manifest found)</>\n")
	}
	_, err := io.WriteString(out, header)
	if err != nil {
		return err
	}

	w := textio.NewPrefixWriter(out, summaryIndent)
	fmt.Fprintf(w, "total packages in build plan:\t%d\n", r.Total)
	fmt.Fprint(w, color.Sprintf("restored from cache:\t<green>%d</> <gray>(%d files)</>\n", r.Restored, r.FilesRestored))
	fmt.Fprintf(w, "skipped (always rebuild):\t%d\n", r.SkippedAlwaysRebuild)
	fmt.Fprintf(w, "skipped (fingerprint changed):\t%d\n", r.SkippedStale)
	fmt.Fprintf(w, "skipped (not in cache):\t%d\n", r.SkippedNoFingerprint)
	fmt.Fprintf(w, "skipped (cached files missing):\t%d\n", r.SkippedMissing)
	if r.Failed > 0 {
		fmt.Fprint(w, color.Sprintf("<red>failed to restore:</>\t%d\n", r.Failed))
	}
	if r.SharedFilesRestored > 0 {
		fmt.Fprintf(w, "shared tree files restored:\t%d\n", r.SharedFilesRestored)
	}
	fmt.Fprint(w, color.Sprintf("will need to build:\t<light_yellow>%d</>\n", r.WillBuild()))
	return w.Flush()
}

// PrintSaveSummary writes a human readable summary of a save run to out
func PrintSaveSummary(out io.Writer, location string, r *SaveReport) error {
	_, err := io.WriteString(out, color.Sprintf("<green>cache saved</> <gray>(%s)</>\n", location))
	if err != nil {
		return err
	}

	w := textio.NewPrefixWriter(out, summaryIndent)
	fmt.Fprintf(w, "packages cached:\t%d\n", r.Cached)
	fmt.Fprintf(w, "packages without artifacts:\t%d\n", r.SkippedNoArtifacts)
	fmt.Fprintf(w, "library packages:\t%d\n", r.Libraries)
	fmt.Fprintf(w, "shared tree files:\t%d\n", r.SharedFiles)
	fmt.Fprintf(w, "total cache size:\t%.1f MB\n", float64(r.TotalBytes)/(1024*1024))
	return w.Flush()
}

func countUnique(fingerprints map[string]string) int {
	uniq := make(map[string]struct{}, len(fingerprints))
	for _, fp := range fingerprints {
		uniq[fp] = struct{}{}
	}
	return len(uniq)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
