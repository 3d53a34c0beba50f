package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/logging"
	"github.com/muurk/ecatcheck/internal/report"
	"github.com/muurk/ecatcheck/internal/sii"
	"github.com/muurk/ecatcheck/internal/ui"
)

// Image access widths accepted by --width
const (
	widthByte  = "byte"
	widthWord  = "word"
	widthDWord = "dword"
)

// sii command flags
var (
	siiManufacturer string
	siiForce        bool
	siiOffset       string
	siiLength       int
	siiWidth        string
	siiStrict       bool
	siiSeal         bool
	siiYes          bool
)

func init() {
	rootCmd.AddCommand(siiCmd)
	siiCmd.AddCommand(siiNewCmd)
	siiCmd.AddCommand(siiShowCmd)
	siiCmd.AddCommand(siiValidateCmd)
	siiCmd.AddCommand(siiReadCmd)
	siiCmd.AddCommand(siiWriteCmd)
	siiCmd.AddCommand(siiSealCmd)

	siiNewCmd.Flags().StringVar(&siiManufacturer, "manufacturer", "", "Manufacturer (vendor) id to store at 0x0002")
	siiNewCmd.Flags().BoolVar(&siiForce, "force", false, "Overwrite an existing file")
	siiNewCmd.Flags().BoolVar(&siiSeal, "seal", false, "Store the header checksum")

	siiShowCmd.Flags().StringVar(&siiOffset, "offset", "0", "First byte to show")
	siiShowCmd.Flags().IntVarP(&siiLength, "length", "n", 128, "Number of bytes to show")

	siiValidateCmd.Flags().BoolVar(&siiStrict, "strict", false, "Also compare the stored checksum with the computed CRC")

	siiReadCmd.Flags().StringVarP(&siiWidth, "width", "w", widthWord, "Access width: byte, word, dword or a byte count")

	siiWriteCmd.Flags().StringVarP(&siiWidth, "width", "w", widthWord, "Access width: byte, word, dword, or hex for a raw block")
	siiWriteCmd.Flags().BoolVar(&siiSeal, "seal", false, "Recompute the header checksum after writing")
	siiWriteCmd.Flags().BoolVarP(&siiYes, "yes", "y", false, "Skip the confirmation prompt")
}

var siiCmd = &cobra.Command{
	Use:   "sii",
	Short: "Create, inspect and edit SII configuration images",
	Long: `Work with 8192-byte SII (Slave Information Interface) configuration
images stored as raw binary files.

Words and double words are little-endian. Every access is bounds checked
against the 8192-byte image. Offsets accept decimal, 0x or #x notation.`,
}

var siiNewCmd = &cobra.Command{
	Use:   "new <image>",
	Short: "Create a blank image",
	Example: `  ecatcheck sii new blank.bin
  ecatcheck sii new el7201.bin --manufacturer 0x0002 --seal`,
	Args: cobra.ExactArgs(1),
	RunE: runSIINew,
}

func runSIINew(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	path := args[0]

	if _, err := os.Stat(path); err == nil && !siiForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	img := sii.New()
	if siiManufacturer != "" {
		v, err := parseUintFlag("manufacturer", siiManufacturer, 16)
		if err != nil {
			return err
		}
		if err := img.WriteWord(sii.ManufacturerIDOffset, uint16(v)); err != nil {
			return err
		}
	}
	if siiSeal {
		img.SealChecksum()
	}

	if err := img.Save(path); err != nil {
		return err
	}

	printer(cmd).PrintSuccess("Image created", map[string]string{
		"File":         path,
		"Size":         strconv.Itoa(sii.Size) + " bytes",
		"Manufacturer": esi.FormatHex(uint64(img.ManufacturerID()), 4),
		"Checksum":     esi.FormatHex(uint64(img.Checksum()), 4),
	})
	return nil
}

var siiShowCmd = &cobra.Command{
	Use:   "show <image>",
	Short: "Hex dump part of an image",
	Example: `  # Header
  ecatcheck sii show el7201.bin

  # Category area
  ecatcheck sii show el7201.bin --offset 0x80 -n 256`,
	Args: cobra.ExactArgs(1),
	RunE: runSIIShow,
}

func runSIIShow(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	img, err := sii.Load(args[0])
	if err != nil {
		return err
	}
	offset, err := parseOffset(siiOffset)
	if err != nil {
		return err
	}

	lines, err := img.Dump(offset, siiLength)
	if err != nil {
		return fmt.Errorf("cannot show %d bytes at 0x%04X: %w", siiLength, offset, err)
	}

	out := printer(cmd)
	out.PrintHeader("SII Image", "ecatcheck sii show", map[string]string{
		"File":   args[0],
		"Range":  fmt.Sprintf("0x%04X-0x%04X", offset, offset+siiLength-1),
		"Header": fmt.Sprintf("checksum %s, manufacturer %s", esi.FormatHex(uint64(img.Checksum()), 4), esi.FormatHex(uint64(img.ManufacturerID()), 4)),
	})
	out.Newline()
	for _, line := range lines {
		out.Println(ui.TraceContentStyle.Render(line))
	}
	return nil
}

var siiValidateCmd = &cobra.Command{
	Use:   "validate <image>",
	Short: "Check image integrity",
	Long: `Check that the image header carries a checksum and a manufacturer id.

With --strict the stored checksum must also equal the CRC-8 of the header
bytes 0x0002-0x000F.`,
	Example: `  ecatcheck sii validate el7201.bin
  ecatcheck sii validate el7201.bin --strict --report image.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSIIValidate,
}

func runSIIValidate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	img, err := sii.Load(args[0])
	if err != nil {
		return err
	}

	var result *sii.ValidationResult
	if siiStrict {
		result = img.ValidateStrict()
	} else {
		result = img.Validate()
	}

	run := report.New("")
	run.Image = result
	if err := writeReport(run); err != nil {
		return err
	}

	details := map[string]string{
		"File":         args[0],
		"Checksum":     esi.FormatHex(uint64(img.Checksum()), 4),
		"Manufacturer": esi.FormatHex(uint64(img.ManufacturerID()), 4),
	}
	if siiStrict {
		details["Computed CRC"] = esi.FormatHex(uint64(img.ComputeChecksum()), 4)
	}

	if len(result.Warnings) > 0 {
		out.Println(ui.RenderFindings("Warnings", result.Warnings, true))
	}
	if !result.Valid {
		out.Println(ui.RenderFindings("Errors", result.Errors, false))
		out.PrintWarning("Image is not valid", details)
		return fmt.Errorf("image validation failed with %d error(s)", len(result.Errors))
	}
	out.PrintSuccess("Image is valid", details)
	return nil
}

var siiReadCmd = &cobra.Command{
	Use:   "read <image> <offset>",
	Short: "Read a value from an image",
	Example: `  # Manufacturer id
  ecatcheck sii read el7201.bin 0x0002

  # 16 raw bytes
  ecatcheck sii read el7201.bin 0x10 --width 16`,
	Args: cobra.ExactArgs(2),
	RunE: runSIIRead,
}

func runSIIRead(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	img, err := sii.Load(args[0])
	if err != nil {
		return err
	}
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}

	value, err := readImage(img, offset, siiWidth)
	if err != nil {
		printer(cmd).PrintError("Read failed", err, ecaterr.TroubleshootingHint(err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// readImage reads one value at offset and renders it.
func readImage(img *sii.Image, offset int, width string) (string, error) {
	switch width {
	case widthByte:
		v, err := img.ReadByteAt(offset)
		return esi.FormatHex(uint64(v), 2), err
	case widthWord:
		v, err := img.ReadWord(offset)
		return esi.FormatHex(uint64(v), 4), err
	case widthDWord:
		v, err := img.ReadDWord(offset)
		return esi.FormatHex(uint64(v), 8), err
	}

	n, err := strconv.Atoi(width)
	if err != nil || n <= 0 {
		return "", ecaterr.NewValidationError(fmt.Sprintf("invalid width %q (expected byte, word, dword or a byte count)", width))
	}
	b, err := img.ReadBlock(offset, n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

var siiWriteCmd = &cobra.Command{
	Use:   "write <image> <offset> <value>",
	Short: "Write a value into an image",
	Long: `Write a value into an image file.

The image is modified in place, so a confirmation is required unless --yes
is given. If the write fails the file is left unchanged.`,
	Example: `  # Set the manufacturer id and reseal the header
  ecatcheck sii write el7201.bin 0x0002 0x0002 --seal

  # Write raw bytes without prompting
  ecatcheck sii write el7201.bin 0x80 0a0b0c0d --width hex --yes`,
	Args: cobra.ExactArgs(3),
	RunE: runSIIWrite,
}

func runSIIWrite(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	path := args[0]

	img, err := sii.Load(path)
	if err != nil {
		return err
	}
	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("write %s (%s) at 0x%04X", args[2], siiWidth, offset)
	if !siiYes && !ui.SIIWriteConfirmation(cmd.InOrStdin(), cmd.OutOrStdout(), path, desc) {
		return fmt.Errorf("write cancelled")
	}

	editor := sii.NewEditor(img)
	if err := editor.Apply(desc, func(target *sii.Image) error {
		if err := writeImage(target, offset, siiWidth, args[2]); err != nil {
			return err
		}
		if siiSeal {
			target.SealChecksum()
		}
		return nil
	}); err != nil {
		printer(cmd).PrintError("Write failed", err, ecaterr.TroubleshootingHint(err))
		return err
	}

	if err := editor.Image().Save(path); err != nil {
		return err
	}
	logging.Info("Image written", zap.String("path", path), zap.String("edit", desc))

	printer(cmd).PrintSuccess("Image updated", map[string]string{
		"File":     path,
		"Offset":   esi.FormatHex(uint64(offset), 4),
		"Checksum": esi.FormatHex(uint64(img.Checksum()), 4),
	})
	return nil
}

// writeImage stores text at offset using the given width.
func writeImage(img *sii.Image, offset int, width, text string) error {
	switch width {
	case widthByte:
		v, err := esi.ParseUint(text, 8)
		if err != nil {
			return ecaterr.NewValidationError(fmt.Sprintf("invalid byte value: %v", err))
		}
		return img.WriteByteAt(offset, byte(v))
	case widthWord:
		v, err := esi.ParseUint(text, 16)
		if err != nil {
			return ecaterr.NewValidationError(fmt.Sprintf("invalid word value: %v", err))
		}
		return img.WriteWord(offset, uint16(v))
	case widthDWord:
		v, err := esi.ParseUint(text, 32)
		if err != nil {
			return ecaterr.NewValidationError(fmt.Sprintf("invalid dword value: %v", err))
		}
		return img.WriteDWord(offset, uint32(v))
	case typeHex:
		data, err := encodeValue(typeHex, text)
		if err != nil {
			return err
		}
		return img.WriteBlock(offset, data)
	default:
		return ecaterr.NewValidationError(fmt.Sprintf("invalid width %q (expected byte, word, dword or hex)", width))
	}
}

var siiSealCmd = &cobra.Command{
	Use:   "seal <image>",
	Short: "Store the header checksum",
	Long: `Compute the CRC-8 of header bytes 0x0002-0x000F and store it in the
checksum word at 0x0000.`,
	Example: `  ecatcheck sii seal el7201.bin`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSIISeal,
}

func runSIISeal(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	img, err := sii.Load(args[0])
	if err != nil {
		return err
	}
	previous := img.Checksum()
	sum := img.SealChecksum()
	if err := img.Save(args[0]); err != nil {
		return err
	}

	printer(cmd).PrintSuccess("Checksum stored", map[string]string{
		"File":     args[0],
		"Previous": esi.FormatHex(uint64(previous), 4),
		"Checksum": esi.FormatHex(uint64(sum), 4),
	})
	return nil
}

func parseOffset(text string) (int, error) {
	v, err := esi.ParseUint(text, 16)
	if err != nil {
		return 0, ecaterr.NewValidationError(fmt.Sprintf("invalid offset: %v", err))
	}
	return int(v), nil
}
