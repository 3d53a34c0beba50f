package compare

import (
	"fmt"
	"strings"
)

// Summary returns a one-line summary of the comparison
func (r *DiffResult) Summary() string {
	if !r.HasDifferences {
		return fmt.Sprintf("Match: vendor 0x%04X product 0x%08X",
			r.BasicInfo.VendorIDExpected, r.BasicInfo.ProductCodeExpected)
	}
	return fmt.Sprintf("%d difference(s): vendor 0x%04X product 0x%08X",
		r.DifferenceCount(), r.BasicInfo.VendorIDExpected, r.BasicInfo.ProductCodeExpected)
}

// DifferenceCount counts the findings that are real differences, leaving
// out advisories for empty sections.
func (r *DiffResult) DifferenceCount() int {
	n := 0
	if !r.BasicInfo.VendorIDMatch {
		n++
	}
	if !r.BasicInfo.ProductCodeMatch {
		n++
	}
	if !r.BasicInfo.RevisionNoMatch {
		n++
	}
	if r.ObjectDictionary.HasDifferences {
		n += len(r.ObjectDictionary.Differences)
	}
	if r.SyncManagers.HasDifferences {
		n += len(r.SyncManagers.Differences)
	}
	if r.PDOMappings.HasDifferences {
		n += len(r.PDOMappings.Differences)
	}
	return n
}

func matchMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// FormatBasicInfo returns the identity comparison as a table
func (r *DiffResult) FormatBasicInfo() string {
	var b strings.Builder
	bi := r.BasicInfo

	b.WriteString("=== Basic Information ===\n")
	b.WriteString("Field        | Expected   | Actual     | Match\n")
	b.WriteString("-------------+------------+------------+------\n")
	b.WriteString(fmt.Sprintf("Vendor ID    | 0x%04X     | 0x%04X     | %s\n",
		bi.VendorIDExpected, bi.VendorIDActual, matchMark(bi.VendorIDMatch)))
	b.WriteString(fmt.Sprintf("Product Code | 0x%08X | 0x%08X | %s\n",
		bi.ProductCodeExpected, bi.ProductCodeActual, matchMark(bi.ProductCodeMatch)))
	b.WriteString(fmt.Sprintf("Revision     | 0x%04X     | %-10s | %s\n",
		bi.RevisionNoExpected, "(n/a)", matchMark(bi.RevisionNoMatch)))

	return b.String()
}

func formatSection(b *strings.Builder, title string, has bool, counts string, diffs []string) {
	b.WriteString(fmt.Sprintf("=== %s ===\n", title))
	if counts != "" {
		b.WriteString(counts)
		b.WriteString("\n")
	}
	if len(diffs) == 0 {
		b.WriteString("No differences\n")
		return
	}
	mark := "!"
	if !has {
		mark = "i"
	}
	for _, d := range diffs {
		b.WriteString(fmt.Sprintf("  [%s] %s\n", mark, d))
	}
}

// Format returns a detailed multi-section rendering of the comparison
func (r *DiffResult) Format() string {
	var b strings.Builder

	b.WriteString(r.FormatBasicInfo())
	b.WriteString("\n")

	od := r.ObjectDictionary
	counts := ""
	if od.TotalObjects > 0 {
		counts = fmt.Sprintf("Objects: %d, SubIndices: %d", od.TotalObjects, od.TotalSubIndices)
	}
	formatSection(&b, "Object Dictionary", od.HasDifferences, counts, od.Differences)
	b.WriteString("\n")

	sm := r.SyncManagers
	counts = ""
	if sm.TotalSyncManagers > 0 {
		counts = fmt.Sprintf("Sync Managers: %d", sm.TotalSyncManagers)
	}
	formatSection(&b, "Sync Managers", sm.HasDifferences, counts, sm.Differences)
	b.WriteString("\n")

	pdo := r.PDOMappings
	counts = ""
	if pdo.TotalPDOMappings > 0 {
		counts = fmt.Sprintf("PDO Mappings: %d, Entries: %d", pdo.TotalPDOMappings, pdo.TotalPDOEntries)
	}
	formatSection(&b, "PDO Mappings", pdo.HasDifferences, counts, pdo.Differences)
	b.WriteString("\n")

	b.WriteString(r.Summary())
	b.WriteString("\n")
	return b.String()
}
