// Package esi reads EtherCAT Slave Information (ESI) device profiles.
//
// Reading happens in two stages. A document reader (ReadXML, ReadYAML or
// ReadDocument) turns bytes into a generic Element tree that remembers line
// and column numbers. Parse then walks that tree and builds a typed Profile:
//
//	root, err := esi.ReadDocument("device.xml", f)
//	if err != nil {
//	    return err
//	}
//	profile, err := esi.Parse(root)
//
// DeviceInfo/VendorID, ProductCode and RevisionNo are required and must fit
// 16, 32 and 16 bits respectively. The object dictionary, sync manager and
// PDO mapping collections are optional, but every entry that is present must
// carry all of its fields. Any violation is an ecaterr MalformedProfile
// error naming the element.
//
// Numbers may be written in decimal, as 0x-prefixed hex, or in the ESI #x
// hex notation.
//
// CheckStructure is an optional pre-parse pass that reports every structural
// problem at once with line and column, rather than stopping at the first.
//
// Encode and EncodeYAML write a Profile back out such that parsing the
// output yields an identical Profile.
package esi
