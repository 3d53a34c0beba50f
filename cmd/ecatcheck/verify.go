package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/compare"
	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/identity"
	"github.com/muurk/ecatcheck/internal/lifecycle"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/odverify"
	"github.com/muurk/ecatcheck/internal/report"
	"github.com/muurk/ecatcheck/internal/ui"
)

// Expected identity flags
var (
	expectVendor  string
	expectProduct string
	expectProfile string
)

func init() {
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(lifecycleCmd)
	rootCmd.AddCommand(odverifyCmd)

	for _, c := range []*cobra.Command{compareCmd, identityCmd, lifecycleCmd, odverifyCmd} {
		addDeviceFlags(c)
	}

	compareCmd.Flags().StringVar(&expectVendor, "vendor", "", "Vendor ID to compare against instead of reading the device")
	compareCmd.Flags().StringVar(&expectProduct, "product", "", "Product code to compare against instead of reading the device")

	identityCmd.Flags().StringVar(&expectVendor, "vendor", "", "Expected vendor ID")
	identityCmd.Flags().StringVar(&expectProduct, "product", "", "Expected product code")
	identityCmd.Flags().StringVar(&expectProfile, "profile", "", "Take the expected identity from this ESI file")
}

var compareCmd = &cobra.Command{
	Use:   "compare <file>",
	Short: "Compare a profile with a device identity",
	Long: `Compare an ESI profile with the identity of a device.

The identity is read live with --device, or given directly with --vendor
and --product. The profile is also checked for the mandatory objects, sync
managers and PDO mappings every device must declare.`,
	Example: `  # Compare against a live device
  ecatcheck compare EL7201.xml --device tcp://192.168.1.50:34980

  # Compare against known values
  ecatcheck compare EL7201.xml --vendor 0x0002 --product 0x1C213052

  # Save a report
  ecatcheck compare EL7201.xml -d bench --report run.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	p, err := loadProfile(args[0])
	if err != nil {
		out.PrintError("Profile could not be parsed", err, ecaterr.TroubleshootingHint(err))
		return err
	}

	run := report.New(deviceArg)
	run.Profile = report.Summarize(p, args[0])

	params := map[string]string{"Profile": args[0]}
	var result *compare.DiffResult
	var trace *ui.Trace

	if deviceArg != "" {
		params["Device"] = deviceArg
		out.PrintHeader("Profile Comparison", "ecatcheck compare", params)
		out.Newline()

		ctx := cmd.Context()
		s, err := openDevice(ctx, nil)
		if err != nil {
			out.PrintError("Connection failed", err, ecaterr.TroubleshootingHint(err))
			run.AddError(err)
			return firstErr(err, writeReport(run))
		}
		defer s.Close()
		trace = s.Trace

		result, err = compare.NewComparator(identity.NewReader(s.Client)).CompareLive(ctx, p)
		if err != nil {
			out.PrintError("Identity read failed", err, ecaterr.TroubleshootingHint(err))
			if verbose {
				out.PrintTrace(trace)
			}
			run.AddError(err)
			return firstErr(err, writeReport(run))
		}
		run.Identity = &identity.Identity{
			VendorID:    result.BasicInfo.VendorIDActual,
			ProductCode: result.BasicInfo.ProductCodeActual,
		}
		rememberIdentity(*run.Identity)
	} else {
		actual, err := expectedIdentity()
		if err != nil {
			return err
		}
		if actual == nil {
			return fmt.Errorf("give --device, or both --vendor and --product")
		}
		params["Vendor ID"] = esi.FormatHex(uint64(actual.VendorID), 4)
		params["Product code"] = esi.FormatHex(uint64(actual.ProductCode), 8)
		out.PrintHeader("Profile Comparison", "ecatcheck compare", params)
		out.Newline()
		result = compare.Compare(p, compare.Actual{VendorID: actual.VendorID, ProductCode: actual.ProductCode})
	}

	run.Diff = result
	printDiff(out, result)
	if verbose && trace != nil {
		out.PrintTrace(trace)
	}

	if err := writeReport(run); err != nil {
		return err
	}
	if result.HasDifferences {
		return fmt.Errorf("%d difference(s) between profile and device", result.DifferenceCount())
	}
	return nil
}

func printDiff(out *ui.Printer, r *compare.DiffResult) {
	b := r.BasicInfo
	out.Println(ui.RenderChecklist([]ui.CheckRow{
		{
			Field:    "Vendor ID",
			Expected: esi.FormatHex(uint64(b.VendorIDExpected), 4),
			Actual:   esi.FormatHex(uint64(b.VendorIDActual), 4),
			Match:    b.VendorIDMatch,
		},
		{
			Field:    "Product code",
			Expected: esi.FormatHex(uint64(b.ProductCodeExpected), 8),
			Actual:   esi.FormatHex(uint64(b.ProductCodeActual), 8),
			Match:    b.ProductCodeMatch,
		},
		{
			Field:    "Revision",
			Expected: esi.FormatHex(uint64(b.RevisionNoExpected), 4),
			Actual:   "not read",
			Match:    b.RevisionNoMatch,
		},
	}))

	od, sm, pdo := r.ObjectDictionary, r.SyncManagers, r.PDOMappings
	out.Println(ui.RenderFindings(
		fmt.Sprintf("Object dictionary (%d objects, %d subindices)", od.TotalObjects, od.TotalSubIndices),
		od.Differences, !od.HasDifferences))
	out.Println(ui.RenderFindings(
		fmt.Sprintf("Sync managers (%d)", sm.TotalSyncManagers),
		sm.Differences, !sm.HasDifferences))
	out.Println(ui.RenderFindings(
		fmt.Sprintf("PDO mappings (%d mappings, %d entries)", pdo.TotalPDOMappings, pdo.TotalPDOEntries),
		pdo.Differences, !pdo.HasDifferences))

	if r.HasDifferences {
		out.PrintWarning(r.Summary(), map[string]string{
			"Differences": strconv.Itoa(r.DifferenceCount()),
		})
		return
	}
	out.PrintSuccess(r.Summary(), nil)
}

// expectedIdentity resolves --vendor, --product and --profile. It returns
// nil when none were given. A profile supplies both values; explicit flags
// override it.
func expectedIdentity() (*identity.Identity, error) {
	var p *esi.Profile
	if expectProfile != "" {
		loaded, err := loadProfile(expectProfile)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	var id identity.Identity
	vendorSet, productSet := p != nil, p != nil
	if p != nil {
		id = identity.Identity{VendorID: p.VendorID, ProductCode: p.ProductCode}
	}

	if expectVendor != "" {
		v, err := parseUintFlag("vendor", expectVendor, 16)
		if err != nil {
			return nil, err
		}
		id.VendorID, vendorSet = uint16(v), true
	}
	if expectProduct != "" {
		v, err := parseUintFlag("product", expectProduct, 32)
		if err != nil {
			return nil, err
		}
		id.ProductCode, productSet = uint32(v), true
	}

	switch {
	case !vendorSet && !productSet:
		return nil, nil
	case vendorSet != productSet:
		return nil, fmt.Errorf("--vendor and --product must be given together")
	}
	return &id, nil
}

// rememberIdentity stores the identity against a saved gateway.
func rememberIdentity(id identity.Identity) {
	if registry.GetGateway(deviceArg) == nil {
		return
	}
	registry.UpdateGatewaySeen(deviceArg, id.VendorID, id.ProductCode)
	if err := saveRegistry(); err != nil {
		logging.Warn("Failed to update gateway", zap.String("gateway", deviceArg), zap.Error(err))
	}
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Read and check the device identity",
	Long: `Read the vendor ID and product code from the device identity object
(0x1018) and optionally check them against expected values.`,
	Example: `  # Show the identity
  ecatcheck identity --device tcp://192.168.1.50:34980

  # Check against explicit values
  ecatcheck identity -d bench --vendor 0x0002 --product 0x1C213052

  # Check against a profile
  ecatcheck identity -d bench --profile EL7201.xml`,
	Args: cobra.NoArgs,
	RunE: runIdentity,
}

func runIdentity(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	expected, err := expectedIdentity()
	if err != nil {
		return err
	}

	out.PrintHeader("Device Identity", "ecatcheck identity", map[string]string{"Device": deviceArg})
	out.Newline()

	run := report.New(deviceArg)
	ctx := cmd.Context()
	s, err := openDevice(ctx, nil)
	if err != nil {
		out.PrintError("Connection failed", err, ecaterr.TroubleshootingHint(err))
		run.AddError(err)
		return firstErr(err, writeReport(run))
	}
	defer s.Close()

	validator := identity.NewValidator(s.Client)
	id, err := validator.Reader().Identity(ctx)
	if err != nil {
		out.PrintError("Identity read failed", err, ecaterr.TroubleshootingHint(err))
		if verbose {
			out.PrintTrace(s.Trace)
		}
		run.AddError(err)
		return firstErr(err, writeReport(run))
	}
	run.Identity = &id
	rememberIdentity(id)

	details := map[string]string{
		"Vendor ID":    esi.FormatHex(uint64(id.VendorID), 4),
		"Product code": esi.FormatHex(uint64(id.ProductCode), 8),
	}

	var mismatch error
	if expected == nil {
		out.PrintSuccess("Identity read", details)
	} else {
		vendorOK := id.VendorID == expected.VendorID
		productOK := id.ProductCode == expected.ProductCode
		out.Println(ui.RenderChecklist([]ui.CheckRow{
			{Field: "Vendor ID", Expected: esi.FormatHex(uint64(expected.VendorID), 4), Actual: details["Vendor ID"], Match: vendorOK},
			{Field: "Product code", Expected: esi.FormatHex(uint64(expected.ProductCode), 8), Actual: details["Product code"], Match: productOK},
		}))
		if vendorOK && productOK {
			out.PrintSuccess("Identity matches", details)
		} else {
			mismatch = fmt.Errorf("device identity %s does not match expected %s", id, *expected)
			out.PrintError("Identity mismatch", mismatch, []string{
				"Check the device is the one the profile describes",
				"Check --node addresses the intended slave",
			})
			run.AddError(mismatch)
		}
	}

	if verbose {
		out.PrintTrace(s.Trace)
	}
	return firstErr(mismatch, writeReport(run))
}

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Walk the device through its application-layer states",
	Long: `Walk the device through Init → Pre-Operational → Safe-Operational →
Operational, checking each transition is accepted.

Every transition is attempted even after one is rejected. The device is
always returned to Init afterwards; that final step does not affect the
verdict.`,
	Example: `  ecatcheck lifecycle --device ws://gateway.local:8080/ecat
  ecatcheck lifecycle -d bench -v --report lifecycle.json`,
	Args: cobra.NoArgs,
	RunE: runLifecycle,
}

func runLifecycle(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	names := make([]string, 0, len(lifecycle.StandardSequence)+1)
	for _, t := range lifecycle.StandardSequence {
		names = append(names, t.String())
	}
	names = append(names, lifecycle.CleanupTransition.String()+" (cleanup)")

	run := report.New(deviceArg)
	trace := ui.NewTrace()
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:      "Lifecycle Validation",
		Command:    "ecatcheck lifecycle",
		Params:     map[string]string{"Device": deviceArg},
		TotalSteps: len(names),
		StepNames:  names,
		Verbose:    verbose,
		Trace:      trace,
		Output:     cmd.OutOrStdout(),
	})

	_, err := runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
		s, err := openDevice(ctx, trace)
		if err != nil {
			return nil, err
		}
		defer s.Close()

		v := lifecycle.NewValidator(s.Channel)
		v.OnStep = func(i, total int, step lifecycle.StepResult) {
			status, msg := ui.StepComplete, "accepted"
			switch {
			case step.Err != "":
				status, msg = ui.StepFailed, step.Err
			case !step.Accepted:
				status, msg = ui.StepFailed, "rejected"
			}
			if step.Cleanup && status == ui.StepFailed {
				status = ui.StepSkipped
			}
			onStep(i+1, "", status, msg)
		}

		result, err := v.ValidateFullStateSequence(ctx)
		if result != nil {
			run.Lifecycle = result
		}
		if err != nil {
			return nil, err
		}

		failed := result.Failed()
		outcome := &ui.Outcome{
			Passed: result.Passed,
			Details: map[string]string{
				"Transitions": strconv.Itoa(len(lifecycle.StandardSequence)),
				"Rejected":    strconv.Itoa(len(failed)),
			},
		}
		if result.Passed {
			outcome.Summary = fmt.Sprintf("All %d transitions accepted", len(lifecycle.StandardSequence))
		} else {
			outcome.Summary = fmt.Sprintf("%d of %d transitions rejected", len(failed), len(lifecycle.StandardSequence))
		}
		return outcome, nil
	})

	if err != nil {
		run.AddError(err)
		return firstErr(err, writeReport(run))
	}
	if err := writeReport(run); err != nil {
		return err
	}
	if !run.Lifecycle.Passed {
		return fmt.Errorf("lifecycle validation failed")
	}
	return nil
}

var odverifyCmd = &cobra.Command{
	Use:   "odverify <file>",
	Short: "Probe the device for every object the profile declares",
	Long: `Read subindex 0 of every object in the profile's object dictionary
from the device, then every declared subindex. Objects the device cannot
read are reported; verification continues past failures.`,
	Example: `  ecatcheck odverify EL7201.xml --device tcp://192.168.1.50:34980`,
	Args:    cobra.ExactArgs(1),
	RunE:    runODVerify,
}

func runODVerify(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	p, err := loadProfile(args[0])
	if err != nil {
		out.PrintError("Profile could not be parsed", err, ecaterr.TroubleshootingHint(err))
		return err
	}

	names := make([]string, len(p.ObjectDictionary))
	for i, obj := range p.ObjectDictionary {
		names[i] = fmt.Sprintf("%s %s", esi.FormatHex(uint64(obj.Index), 4), obj.Name)
	}

	run := report.New(deviceArg)
	run.Profile = report.Summarize(p, args[0])
	var trace *ui.Trace
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:      "Object Dictionary Verification",
		Command:    "ecatcheck odverify",
		Params:     map[string]string{"Device": deviceArg, "Profile": args[0]},
		TotalSteps: len(names),
		StepNames:  names,
		Verbose:    verbose,
		Trace:      trace,
		Output:     cmd.OutOrStdout(),
	})

	_, err = runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) (*ui.Outcome, error) {
		s, err := openDevice(ctx, trace)
		if err != nil {
			return nil, err
		}
		defer s.Close()

		v := odverify.NewVerifier(s.Client)
		v.OnObject = func(i, total int, obj odverify.ObjectResult) {
			if obj.Valid {
				onStep(i+1, "", ui.StepComplete, fmt.Sprintf("%d subindices", len(obj.SubIndices)))
				return
			}
			onStep(i+1, "", ui.StepFailed, fmt.Sprintf("%d problem(s)", len(obj.Errors)))
		}

		result, err := v.Verify(ctx, p)
		if result != nil {
			run.Objects = result
		}
		if err != nil {
			return nil, err
		}

		outcome := &ui.Outcome{
			Passed: result.Valid,
			Details: map[string]string{
				"Objects": strconv.Itoa(result.TotalObjects),
				"Valid":   strconv.Itoa(result.ValidObjects),
				"Invalid": strconv.Itoa(result.InvalidObjects),
			},
		}
		if result.Valid {
			outcome.Summary = fmt.Sprintf("All %d objects readable", result.TotalObjects)
		} else {
			outcome.Summary = "Object dictionary verification failed"
		}
		return outcome, nil
	})

	if run.Objects != nil && len(run.Objects.Errors) > 0 {
		out.Newline()
		out.Println(ui.RenderFindings("Problems", run.Objects.Errors, false))
	}
	if err != nil {
		run.AddError(err)
		return firstErr(err, writeReport(run))
	}
	if err := writeReport(run); err != nil {
		return err
	}
	if !run.Objects.Valid {
		return fmt.Errorf("object dictionary verification failed")
	}
	return nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
