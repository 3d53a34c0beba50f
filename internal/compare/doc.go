// Package compare diffs a parsed ESI profile against the identity a device
// reports.
//
// Compare is pure: the same profile and identity always produce the same
// DiffResult. The result has four independent sections:
//   - BasicInfo: vendor ID, product code and revision, field by field
//   - ObjectDictionary: the mandatory CoE objects must be declared
//   - SyncManagers: SM0 and SM1 must exist, plus one Input and one Output
//   - PDOMappings: one Input and one Output mapping, none of them empty
//
// A section whose source list is empty reports a single advisory line and
// does not count as a difference. OverallDifferences flattens every finding
// in section order with "OD: ", "SM: " and "PDO: " tags; basic-info
// mismatches appear first with their own wording.
//
// Comparator adds the live step: it reads the identity over the mailbox
// and then calls Compare.
package compare
