package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/esi"
)

// Value types accepted by --type
const (
	typeU8     = "u8"
	typeU16    = "u16"
	typeU32    = "u32"
	typeHex    = "hex"
	typeString = "string"
)

var sdoType string

func init() {
	rootCmd.AddCommand(sdoCmd)
	sdoCmd.AddCommand(sdoReadCmd)
	sdoCmd.AddCommand(sdoWriteCmd)

	for _, c := range []*cobra.Command{sdoReadCmd, sdoWriteCmd} {
		addDeviceFlags(c)
		c.Flags().StringVarP(&sdoType, "type", "t", typeHex, "Value type: u8, u16, u32, hex or string")
	}
}

var sdoCmd = &cobra.Command{
	Use:   "sdo",
	Short: "Read or write single CoE objects",
	Long: `Read or write a single object of the device's CoE object dictionary
through the mailbox.

Index and subindex accept decimal, 0x or #x notation. Integer values are
little-endian on the wire.`,
}

var sdoReadCmd = &cobra.Command{
	Use:   "read <index> <subindex>",
	Short: "Read an object",
	Example: `  # Device name
  ecatcheck sdo read 0x1008 0 -d bench --type string

  # Vendor ID
  ecatcheck sdo read 0x1018 1 -d tcp://192.168.1.50:34980 --type u32`,
	Args: cobra.ExactArgs(2),
	RunE: runSDORead,
}

func runSDORead(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	index, sub, err := parseAddress(args[0], args[1])
	if err != nil {
		return err
	}
	if _, err := formatValue(sdoType, nil); err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openDevice(ctx, nil)
	if err != nil {
		out.PrintError("Connection failed", err, ecaterr.TroubleshootingHint(err))
		return err
	}
	defer s.Close()

	resp, err := s.Client.Read(ctx, index, sub)
	if verbose {
		defer out.PrintTrace(s.Trace)
	}
	if err != nil {
		out.PrintError(fmt.Sprintf("Read of %s failed", objectName(index, sub)), err, ecaterr.TroubleshootingHint(err))
		return err
	}

	value, err := formatValue(sdoType, resp.Data)
	if err != nil {
		return err
	}
	out.PrintSuccess(objectName(index, sub), map[string]string{
		"Value": value,
		"Raw":   hex.EncodeToString(resp.Data),
	})
	return nil
}

var sdoWriteCmd = &cobra.Command{
	Use:   "write <index> <subindex> <value>",
	Short: "Write an object",
	Example: `  # Write a 16-bit value
  ecatcheck sdo write 0x8010 1 1500 -d bench --type u16

  # Write raw bytes
  ecatcheck sdo write 0x2000 0 0a0b0c -d bench --type hex`,
	Args: cobra.ExactArgs(3),
	RunE: runSDOWrite,
}

func runSDOWrite(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := printer(cmd)

	index, sub, err := parseAddress(args[0], args[1])
	if err != nil {
		return err
	}
	data, err := encodeValue(sdoType, args[2])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openDevice(ctx, nil)
	if err != nil {
		out.PrintError("Connection failed", err, ecaterr.TroubleshootingHint(err))
		return err
	}
	defer s.Close()

	err = s.Client.Write(ctx, index, sub, data)
	if verbose {
		defer out.PrintTrace(s.Trace)
	}
	if err != nil {
		out.PrintError(fmt.Sprintf("Write of %s failed", objectName(index, sub)), err, ecaterr.TroubleshootingHint(err))
		return err
	}

	out.PrintSuccess(objectName(index, sub)+" written", map[string]string{
		"Bytes": hex.EncodeToString(data),
	})
	return nil
}

func parseAddress(indexText, subText string) (uint16, uint8, error) {
	index, err := esi.ParseUint(indexText, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid index: %w", err)
	}
	sub, err := esi.ParseUint(subText, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid subindex: %w", err)
	}
	return uint16(index), uint8(sub), nil
}

func objectName(index uint16, sub uint8) string {
	return fmt.Sprintf("Object 0x%04X:%02X", index, sub)
}

// typeWidth returns the byte width of an integer value type, 0 otherwise.
func typeWidth(t string) int {
	switch t {
	case typeU8:
		return 1
	case typeU16:
		return 2
	case typeU32:
		return 4
	default:
		return 0
	}
}

// encodeValue turns command-line text into wire bytes.
func encodeValue(t, text string) ([]byte, error) {
	switch t {
	case typeU8, typeU16, typeU32:
		width := typeWidth(t)
		v, err := esi.ParseUint(text, width*8)
		if err != nil {
			return nil, ecaterr.NewValidationError(fmt.Sprintf("invalid %s value: %v", t, err))
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf[:width], nil
	case typeHex:
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(text, " ", ""), "0x"))
		if err != nil {
			return nil, ecaterr.NewValidationError(fmt.Sprintf("invalid hex value %q", text))
		}
		return b, nil
	case typeString:
		return []byte(text), nil
	default:
		return nil, ecaterr.NewValidationError(fmt.Sprintf("unknown type %q (expected u8, u16, u32, hex or string)", t))
	}
}

// formatValue renders response data as type t. Responses are zero padded,
// so integer types read only their own width and strings stop at the first
// NUL.
func formatValue(t string, data []byte) (string, error) {
	switch t {
	case typeU8, typeU16, typeU32:
		width := typeWidth(t)
		if data == nil {
			return "", nil
		}
		if len(data) < width {
			return "", ecaterr.NewFramingError(fmt.Sprintf("response carries %d bytes, %s needs %d", len(data), t, width), data)
		}
		buf := make([]byte, 4)
		copy(buf, data[:width])
		v := binary.LittleEndian.Uint32(buf)
		return fmt.Sprintf("%d (%s)", v, esi.FormatHex(uint64(v), width*2)), nil
	case typeHex:
		return hex.EncodeToString(data), nil
	case typeString:
		if i := bytes.IndexByte(data, 0); i >= 0 {
			data = data[:i]
		}
		return string(data), nil
	default:
		return "", ecaterr.NewValidationError(fmt.Sprintf("unknown type %q (expected u8, u16, u32, hex or string)", t))
	}
}
