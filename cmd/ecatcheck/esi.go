package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/report"
	"github.com/muurk/ecatcheck/internal/ui"
)

// esi command flags
var (
	esiShowObjects bool
	esiJSON        bool
	encodeFormat   string
	encodeOutput   string
)

func init() {
	rootCmd.AddCommand(esiCmd)
	esiCmd.AddCommand(esiParseCmd)
	esiCmd.AddCommand(esiCheckCmd)
	esiCmd.AddCommand(esiEncodeCmd)

	esiParseCmd.Flags().BoolVar(&esiShowObjects, "objects", false, "List every object dictionary entry")
	esiParseCmd.Flags().BoolVar(&esiJSON, "json", false, "Print the parsed profile as JSON")

	esiEncodeCmd.Flags().StringVarP(&encodeFormat, "format", "f", "", "Output format: xml or yaml (default: the other one)")
	esiEncodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (default: stdout)")
}

var esiCmd = &cobra.Command{
	Use:   "esi",
	Short: "Work with ESI device profiles",
	Long: `Parse, check and convert ESI device profiles.

Profiles are read from XML (.xml) or from the equivalent YAML form
(.yaml, .yml). No device connection is needed.`,
}

var esiParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a profile and show its contents",
	Long: `Parse an ESI profile and summarise the device identity, object
dictionary, sync managers and PDO mappings it declares.`,
	Example: `  # Summarise a profile
  ecatcheck esi parse EL7201.xml

  # Include every object dictionary entry
  ecatcheck esi parse EL7201.xml --objects

  # Machine-readable output
  ecatcheck esi parse EL7201.xml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runESIParse,
}

func runESIParse(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	p, err := loadProfile(args[0])
	if err != nil {
		out.PrintError("Profile could not be parsed", err, ecaterr.TroubleshootingHint(err))
		return err
	}

	if esiJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	out.PrintHeader("ESI Profile", "ecatcheck esi parse", map[string]string{"File": args[0]})
	out.Newline()
	out.PrintSuccess("Profile parsed", profileDetails(p))

	if esiShowObjects {
		out.Newline()
		out.PrintLines(objectLines(p)...)
	}

	if reportPath != "" {
		run := report.New("")
		run.Profile = report.Summarize(p, args[0])
		return writeReport(run)
	}
	return nil
}

// profileDetails summarises a profile for a result box.
func profileDetails(p *esi.Profile) map[string]string {
	details := map[string]string{
		"Vendor ID":     esi.FormatHex(uint64(p.VendorID), 4),
		"Product code":  esi.FormatHex(uint64(p.ProductCode), 8),
		"Revision":      esi.FormatHex(uint64(p.RevisionNo), 4),
		"Objects":       strconv.Itoa(len(p.ObjectDictionary)),
		"Sync managers": strconv.Itoa(len(p.SyncManagers)),
		"PDO mappings":  strconv.Itoa(len(p.PDOMappings)),
	}
	if p.DeviceName != "" {
		details["Device"] = p.DeviceName
	}
	if p.OrderCode != "" {
		details["Order code"] = p.OrderCode
	}
	return details
}

func objectLines(p *esi.Profile) []string {
	if len(p.ObjectDictionary) == 0 {
		return []string{ui.StepNoteStyle.Render("No object dictionary declared")}
	}

	var lines []string
	for _, obj := range p.ObjectDictionary {
		lines = append(lines, fmt.Sprintf("%s  %-32s %s",
			esi.FormatHex(uint64(obj.Index), 4), obj.Name, ui.StepNoteStyle.Render(obj.DataType)))
		for _, si := range obj.SubIndices {
			line := fmt.Sprintf("    :%02X  %-30s %s", si.SubIndex, si.Name, ui.StepNoteStyle.Render(si.DataType))
			if si.Value != "" {
				line += " = " + si.Value
			}
			lines = append(lines, line)
		}
	}
	return lines
}

var esiCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Report every structural problem in a profile",
	Long: `Check a profile document for structural problems.

Unlike parse, which stops at the first problem, check reports every missing
or invalid field with its line and column. Warnings do not fail the check.`,
	Example: `  ecatcheck esi check EL7201.xml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runESICheck,
}

func runESICheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	issues, err := checkFile(args[0])
	if err != nil {
		out.PrintError("Profile could not be read", err, ecaterr.TroubleshootingHint(err))
		return err
	}

	out.PrintHeader("ESI Structure Check", "ecatcheck esi check", map[string]string{"File": args[0]})
	out.Newline()

	var errs, warnings []string
	for _, issue := range issues {
		if issue.Severity == esi.SeverityError {
			errs = append(errs, issue.String())
		} else {
			warnings = append(warnings, issue.String())
		}
	}

	if len(warnings) > 0 {
		out.Println(ui.RenderFindings("Warnings", warnings, true))
		out.Newline()
	}
	if len(errs) > 0 {
		out.Println(ui.RenderFindings("Errors", errs, false))
		out.Newline()
		return fmt.Errorf("%d structural error(s) in %s", len(errs), args[0])
	}

	out.PrintSuccess("No structural errors", map[string]string{
		"Warnings": strconv.Itoa(len(warnings)),
	})
	return nil
}

func checkFile(path string) ([]esi.Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	root, err := esi.ReadDocument(path, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return esi.CheckStructure(root), nil
}

var esiEncodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Convert a profile between XML and YAML",
	Long: `Parse a profile and write it back out as XML or YAML.

Numbers are normalised to 0x-prefixed hex. Parsing the output yields the
same profile as parsing the input.`,
	Example: `  # XML to YAML on stdout
  ecatcheck esi encode EL7201.xml

  # YAML back to XML
  ecatcheck esi encode EL7201.yaml --format xml -o EL7201.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runESIEncode,
}

func runESIEncode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	p, err := loadProfile(args[0])
	if err != nil {
		return err
	}

	format := encodeFormat
	if format == "" {
		format = esi.FormatYAML
		if esi.FormatFromName(args[0]) == esi.FormatYAML {
			format = esi.FormatXML
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if encodeOutput != "" {
		f, err := os.Create(encodeOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", encodeOutput, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case esi.FormatXML:
		err = esi.Encode(w, p)
	case esi.FormatYAML, "yml":
		err = esi.EncodeYAML(w, p)
	default:
		return fmt.Errorf("unknown format %q (expected xml or yaml)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return nil
}
