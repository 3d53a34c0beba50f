package esi

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

func parseString(t *testing.T, doc string) (*Profile, error) {
	t.Helper()
	root, err := ReadXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadXML() error = %v", err)
	}
	return Parse(root)
}

func minimalDoc(deviceInfo, body string) string {
	return `<EtherCATInfo version="1.0"><Descriptions><Devices><Device>` +
		`<DeviceInfo>` + deviceInfo + `</DeviceInfo>` + body +
		`</Device></Devices></Descriptions></EtherCATInfo>`
}

const basicInfo = `<VendorID>2</VendorID><ProductCode>0x12345678</ProductCode><RevisionNo>0</RevisionNo>`

func TestParseFileXML(t *testing.T) {
	p, err := ParseFile("testdata/servo.xml")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if p.VendorID != 0x0002 {
		t.Errorf("VendorID = 0x%04X, want 0x0002", p.VendorID)
	}
	if p.ProductCode != 0x1C213052 {
		t.Errorf("ProductCode = 0x%08X, want 0x1C213052", p.ProductCode)
	}
	if p.RevisionNo != 0 {
		t.Errorf("RevisionNo = %d, want 0", p.RevisionNo)
	}
	if p.OrderCode != "EL7201-0010" {
		t.Errorf("OrderCode = %q", p.OrderCode)
	}
	if p.DeviceName != "EL7201 Servo Terminal" {
		t.Errorf("DeviceName = %q", p.DeviceName)
	}
	if p.SchemaVersion != "1.6" {
		t.Errorf("SchemaVersion = %q, want 1.6", p.SchemaVersion)
	}

	if len(p.ObjectDictionary) != 2 {
		t.Fatalf("len(ObjectDictionary) = %d, want 2", len(p.ObjectDictionary))
	}
	ident, ok := p.Object(0x1018)
	if !ok {
		t.Fatal("object 0x1018 not found")
	}
	if len(ident.SubIndices) != 3 || ident.SubIndices[0].Value != "4" || ident.SubIndices[2].Name != "Product code" {
		t.Errorf("unexpected subindices %+v", ident.SubIndices)
	}
	if p.TotalSubIndices() != 3 {
		t.Errorf("TotalSubIndices() = %d, want 3", p.TotalSubIndices())
	}

	if len(p.SyncManagers) != 3 {
		t.Fatalf("len(SyncManagers) = %d, want 3", len(p.SyncManagers))
	}
	if p.SyncManagers[2].Direction != DirectionOutput || p.SyncManagers[2].DirectionText != "output" {
		t.Errorf("SM2 direction = %v/%q", p.SyncManagers[2].Direction, p.SyncManagers[2].DirectionText)
	}

	if len(p.PDOMappings) != 2 {
		t.Fatalf("len(PDOMappings) = %d, want 2", len(p.PDOMappings))
	}
	if p.PDOMappings[1].Direction != DirectionInput {
		t.Errorf("PDO 0x1A00 direction = %v, want Input", p.PDOMappings[1].Direction)
	}
	want := []PDOEntry{{0x7010, 1, 16}, {0x7010, 2, 32}}
	if !reflect.DeepEqual(p.PDOMappings[0].Entries, want) {
		t.Errorf("PDO 0x1600 entries = %+v, want %+v", p.PDOMappings[0].Entries, want)
	}
	if p.TotalPDOEntries() != 3 {
		t.Errorf("TotalPDOEntries() = %d, want 3", p.TotalPDOEntries())
	}
}

func TestParseYAMLMatchesXML(t *testing.T) {
	fromXML, err := ParseFile("testdata/servo.xml")
	if err != nil {
		t.Fatal(err)
	}
	fromYAML, err := ParseFile("testdata/servo.yaml")
	if err != nil {
		t.Fatalf("ParseFile(yaml) error = %v", err)
	}

	if !reflect.DeepEqual(fromXML, fromYAML) {
		t.Errorf("YAML profile differs from XML profile\nxml:  %+v\nyaml: %+v", fromXML, fromYAML)
	}
}

func TestParseDeterministic(t *testing.T) {
	data, err := os.ReadFile("testdata/servo.xml")
	if err != nil {
		t.Fatal(err)
	}

	first, err := ParseReader("servo.xml", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := ParseReader("servo.xml", bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatal("re-parsing produced a different profile")
		}
	}
}

func TestParseOptionalSectionsAbsent(t *testing.T) {
	p, err := parseString(t, minimalDoc(basicInfo, ""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(p.ObjectDictionary) != 0 || len(p.SyncManagers) != 0 || len(p.PDOMappings) != 0 {
		t.Error("absent sections should parse as empty collections")
	}
	if p.OrderCode != "" {
		t.Errorf("OrderCode = %q, want empty", p.OrderCode)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "no DeviceInfo",
			doc:     `<EtherCATInfo><Descriptions/></EtherCATInfo>`,
			wantMsg: "DeviceInfo",
		},
		{
			name:    "missing VendorID",
			doc:     minimalDoc(`<ProductCode>1</ProductCode><RevisionNo>0</RevisionNo>`, ""),
			wantMsg: "DeviceInfo/VendorID",
		},
		{
			name:    "non-numeric ProductCode",
			doc:     minimalDoc(`<VendorID>2</VendorID><ProductCode>abc</ProductCode><RevisionNo>0</RevisionNo>`, ""),
			wantMsg: "DeviceInfo/ProductCode",
		},
		{
			name:    "VendorID overflows 16 bits",
			doc:     minimalDoc(`<VendorID>0x10000</VendorID><ProductCode>1</ProductCode><RevisionNo>0</RevisionNo>`, ""),
			wantMsg: "does not fit in 16 bits",
		},
		{
			name:    "missing RevisionNo",
			doc:     minimalDoc(`<VendorID>2</VendorID><ProductCode>1</ProductCode>`, ""),
			wantMsg: "DeviceInfo/RevisionNo",
		},
		{
			name: "object entry without Index",
			doc: minimalDoc(basicInfo,
				`<ObjectEntry><Name>x</Name><ObjectType>VAR</ObjectType><DataType>UINT</DataType></ObjectEntry>`),
			wantMsg: "ObjectEntry[0]/@Index",
		},
		{
			name: "object entry without DataType",
			doc: minimalDoc(basicInfo,
				`<ObjectEntry Index="0x1000"><Name>x</Name><ObjectType>VAR</ObjectType></ObjectEntry>`),
			wantMsg: "ObjectEntry[0]/DataType",
		},
		{
			name: "duplicate object index",
			doc: minimalDoc(basicInfo,
				`<ObjectEntry Index="0x1000"><Name>a</Name><ObjectType>VAR</ObjectType><DataType>UDINT</DataType></ObjectEntry>`+
					`<ObjectEntry Index="4096"><Name>b</Name><ObjectType>VAR</ObjectType><DataType>UDINT</DataType></ObjectEntry>`),
			wantMsg: "duplicate index 0x1000",
		},
		{
			name: "duplicate subindex",
			doc: minimalDoc(basicInfo,
				`<ObjectEntry Index="0x1018"><Name>a</Name><ObjectType>RECORD</ObjectType><DataType>IDENTITY</DataType>`+
					`<SubIndex SubIndex="1"><Name>v</Name><DataType>UDINT</DataType></SubIndex>`+
					`<SubIndex SubIndex="0x01"><Name>w</Name><DataType>UDINT</DataType></SubIndex></ObjectEntry>`),
			wantMsg: "duplicate subindex 0x01",
		},
		{
			name:    "sync manager without WatchdogMode",
			doc:     minimalDoc(basicInfo, `<SyncManager Index="0"><Name>MbxOut</Name><Direction>Output</Direction></SyncManager>`),
			wantMsg: "SyncManager[0]/WatchdogMode",
		},
		{
			name:    "sync manager index overflows 8 bits",
			doc:     minimalDoc(basicInfo, `<SyncManager Index="256"><Name>x</Name><Direction>Output</Direction><WatchdogMode>0</WatchdogMode></SyncManager>`),
			wantMsg: "SyncManager[0]/@Index",
		},
		{
			name:    "PDO mapping without Direction",
			doc:     minimalDoc(basicInfo, `<PDOMapping PDOIndex="0x1600"></PDOMapping>`),
			wantMsg: "PDOMapping[0]/Direction",
		},
		{
			name: "PDO entry without BitLength",
			doc: minimalDoc(basicInfo,
				`<PDOMapping PDOIndex="0x1600"><Direction>Output</Direction><PDOEntry ObjectIndex="0x7000" SubIndex="1"/></PDOMapping>`),
			wantMsg: "PDOMapping[0]/PDOEntry[0]/@BitLength",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.doc)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !ecaterr.IsMalformedProfile(err) {
				t.Errorf("Expected MalformedProfile, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseNil(t *testing.T) {
	if _, err := Parse(nil); !ecaterr.IsMalformedProfile(err) {
		t.Errorf("Parse(nil) error = %v, want MalformedProfile", err)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile("testdata/does-not-exist.xml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateDeviceInfoConsistency(t *testing.T) {
	p := &Profile{VendorID: 0x0002, ProductCode: 0x1C213052}

	if !ValidateDeviceInfoConsistency(p, 0x0002, 0x1C213052) {
		t.Error("Expected match")
	}
	if ValidateDeviceInfoConsistency(p, 0x0003, 0x1C213052) {
		t.Error("Expected vendor mismatch")
	}
	if ValidateDeviceInfoConsistency(p, 0x0002, 0x1C213053) {
		t.Error("Expected product mismatch")
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in   string
		want Direction
	}{
		{"Input", DirectionInput},
		{"input", DirectionInput},
		{"OUTPUT", DirectionOutput},
		{" Output ", DirectionUnspecified},
		{"Output", DirectionOutput},
		{"InOut", DirectionUnspecified},
		{"", DirectionUnspecified},
	}
	for _, tt := range tests {
		if got := ParseDirection(tt.in); got != tt.want {
			t.Errorf("ParseDirection(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
