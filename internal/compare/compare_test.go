package compare

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/muurk/ecatcheck/internal/channel"
	"github.com/muurk/ecatcheck/internal/ecaterr"
	"github.com/muurk/ecatcheck/internal/esi"
	"github.com/muurk/ecatcheck/internal/identity"
	"github.com/muurk/ecatcheck/internal/mailbox"
)

// completeProfile declares every mandatory object, both mailbox sync
// managers and one mapping per direction.
func completeProfile(vendor uint16, product uint32) *esi.Profile {
	p := &esi.Profile{VendorID: vendor, ProductCode: product}
	for _, idx := range MandatoryObjectIndices {
		p.ObjectDictionary = append(p.ObjectDictionary, esi.ObjectEntry{
			Index:      idx,
			SubIndices: []esi.SubIndexEntry{{SubIndex: 0}},
		})
	}
	p.SyncManagers = []esi.SyncManager{
		{Index: 0, DirectionText: "Output"},
		{Index: 1, DirectionText: "Input"},
		{Index: 2, DirectionText: "output"},
		{Index: 3, DirectionText: "INPUT"},
	}
	p.PDOMappings = []esi.PDOMapping{
		{PDOIndex: 0x1600, DirectionText: "Output", Entries: []esi.PDOEntry{{ObjectIndex: 0x7000, SubIndex: 1, BitLength: 16}}},
		{PDOIndex: 0x1A00, DirectionText: "Input", Entries: []esi.PDOEntry{{ObjectIndex: 0x6000, SubIndex: 1, BitLength: 16}}},
	}
	return p
}

func TestCompareMatchingIdentity(t *testing.T) {
	p := completeProfile(0x0000, 0x12345678)
	r := Compare(p, Actual{VendorID: 0x0000, ProductCode: 0x12345678})

	if !r.BasicInfo.IsMatch {
		t.Error("BasicInfo.IsMatch should be true")
	}
	if r.HasDifferences {
		t.Errorf("HasDifferences should be false, got %v", r.OverallDifferences)
	}
	if len(r.OverallDifferences) != 0 {
		t.Errorf("OverallDifferences = %v, want none", r.OverallDifferences)
	}
}

func TestCompareMismatchedVendor(t *testing.T) {
	p := completeProfile(0x0001, 0x12345678)
	r := Compare(p, Actual{VendorID: 0x0002, ProductCode: 0x12345678})

	want := []string{"VendorId mismatch: expected 0x0001, actual 0x0002"}
	if !reflect.DeepEqual(r.OverallDifferences, want) {
		t.Errorf("OverallDifferences = %v, want %v", r.OverallDifferences, want)
	}
	if !r.HasDifferences || r.BasicInfo.IsMatch || r.BasicInfo.VendorIDMatch {
		t.Error("vendor mismatch should be reported")
	}
	if !r.BasicInfo.ProductCodeMatch {
		t.Error("ProductCodeMatch should still be true")
	}
}

func TestCompareMismatchedProduct(t *testing.T) {
	p := completeProfile(0x0002, 0x044C2C52)
	r := Compare(p, Actual{VendorID: 0x0002, ProductCode: 0x1})

	want := []string{"ProductCode mismatch: expected 0x044C2C52, actual 0x00000001"}
	if !reflect.DeepEqual(r.OverallDifferences, want) {
		t.Errorf("OverallDifferences = %v, want %v", r.OverallDifferences, want)
	}
}

func TestCompareRevision(t *testing.T) {
	p := completeProfile(2, 3)
	p.RevisionNo = 0x0011
	r := Compare(p, Actual{VendorID: 2, ProductCode: 3})

	if r.BasicInfo.RevisionNoMatch {
		t.Error("a specified revision cannot match without a readback")
	}
	if r.BasicInfo.IsMatch || !r.HasDifferences {
		t.Error("revision mismatch should make the result differ")
	}
	if len(r.OverallDifferences) != 0 {
		t.Errorf("revision has no dedicated message, got %v", r.OverallDifferences)
	}
}

func TestCompareEmptyObjectDictionary(t *testing.T) {
	p := completeProfile(1, 1)
	p.ObjectDictionary = nil
	r := Compare(p, Actual{VendorID: 1, ProductCode: 1})

	od := r.ObjectDictionary
	if od.HasDifferences {
		t.Error("empty dictionary must not count as a difference")
	}
	if !reflect.DeepEqual(od.Differences, []string{NoObjectDictionary}) {
		t.Errorf("Differences = %v", od.Differences)
	}
	if r.HasDifferences {
		t.Error("advisory alone must not set HasDifferences")
	}
	if !reflect.DeepEqual(r.OverallDifferences, []string{"OD: " + NoObjectDictionary}) {
		t.Errorf("OverallDifferences = %v", r.OverallDifferences)
	}
}

func TestCompareMissingMandatoryObjects(t *testing.T) {
	p := completeProfile(1, 1)
	p.ObjectDictionary = []esi.ObjectEntry{
		{Index: 0x1000},
		{Index: 0x1018, SubIndices: []esi.SubIndexEntry{{SubIndex: 0}, {SubIndex: 1}, {SubIndex: 2}}},
		{Index: 0x6000},
	}
	r := Compare(p, Actual{VendorID: 1, ProductCode: 1})

	od := r.ObjectDictionary
	want := []string{
		"Mandatory object 0x1001 not found in ESI file",
		"Mandatory object 0x1008 not found in ESI file",
		"Mandatory object 0x1019 not found in ESI file",
		"Mandatory object 0x1020 not found in ESI file",
		"Mandatory object 0x1021 not found in ESI file",
		"Mandatory object 0x1600 not found in ESI file",
	}
	if !reflect.DeepEqual(od.Differences, want) {
		t.Errorf("Differences = %v, want %v", od.Differences, want)
	}
	if od.TotalObjects != 3 || od.TotalSubIndices != 3 {
		t.Errorf("counts = %d/%d, want 3/3", od.TotalObjects, od.TotalSubIndices)
	}
	if !r.HasDifferences {
		t.Error("HasDifferences should be true")
	}
	if r.OverallDifferences[0] != "OD: Mandatory object 0x1001 not found in ESI file" {
		t.Errorf("OverallDifferences[0] = %q", r.OverallDifferences[0])
	}
}

func TestCompareSyncManagers(t *testing.T) {
	tests := []struct {
		name string
		sms  []esi.SyncManager
		want []string
		has  bool
	}{
		{
			name: "empty",
			sms:  nil,
			want: []string{NoSyncManagers},
		},
		{
			name: "missing mailbox and inputs",
			sms:  []esi.SyncManager{{Index: 2, DirectionText: "Output"}},
			want: []string{
				"Mandatory sync manager SM0 not found in ESI file",
				"Mandatory sync manager SM1 not found in ESI file",
				"No input sync managers found in ESI file",
			},
			has: true,
		},
		{
			name: "unknown direction text",
			sms:  []esi.SyncManager{{Index: 0, DirectionText: "MBoxOut"}, {Index: 1, DirectionText: "MBoxIn"}},
			want: []string{
				"No input sync managers found in ESI file",
				"No output sync managers found in ESI file",
			},
			has: true,
		},
		{
			name: "case-insensitive roles",
			sms:  []esi.SyncManager{{Index: 0, DirectionText: "oUtPuT"}, {Index: 1, DirectionText: " input "}},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := completeProfile(1, 1)
			p.SyncManagers = tt.sms
			sm := Compare(p, Actual{VendorID: 1, ProductCode: 1}).SyncManagers
			if !reflect.DeepEqual(sm.Differences, tt.want) {
				t.Errorf("Differences = %v, want %v", sm.Differences, tt.want)
			}
			if sm.HasDifferences != tt.has {
				t.Errorf("HasDifferences = %v, want %v", sm.HasDifferences, tt.has)
			}
		})
	}
}

func TestComparePDOMappings(t *testing.T) {
	p := completeProfile(1, 1)
	p.PDOMappings = []esi.PDOMapping{
		{PDOIndex: 0x1A00, DirectionText: "Input"},
		{PDOIndex: 0x1A01, DirectionText: "input", Entries: []esi.PDOEntry{{ObjectIndex: 0x6000, SubIndex: 1, BitLength: 8}}},
	}
	r := Compare(p, Actual{VendorID: 1, ProductCode: 1})

	want := []string{
		"No TxPDO mappings found in ESI file",
		"PDO 0x1A00 has no entries",
	}
	if !reflect.DeepEqual(r.PDOMappings.Differences, want) {
		t.Errorf("Differences = %v, want %v", r.PDOMappings.Differences, want)
	}
	if r.PDOMappings.TotalPDOMappings != 2 || r.PDOMappings.TotalPDOEntries != 1 {
		t.Errorf("counts = %d/%d", r.PDOMappings.TotalPDOMappings, r.PDOMappings.TotalPDOEntries)
	}

	p.PDOMappings = nil
	r = Compare(p, Actual{VendorID: 1, ProductCode: 1})
	if r.PDOMappings.HasDifferences || r.PDOMappings.Differences[0] != NoPDOMappings {
		t.Errorf("empty mappings = %+v", r.PDOMappings)
	}
}

func TestCompareSectionOrder(t *testing.T) {
	p := &esi.Profile{
		VendorID:         1,
		ProductCode:      2,
		ObjectDictionary: []esi.ObjectEntry{{Index: 0x1000}},
		SyncManagers:     []esi.SyncManager{{Index: 0, DirectionText: "Output"}},
		PDOMappings:      []esi.PDOMapping{{PDOIndex: 0x1600, DirectionText: "Output"}},
	}
	r := Compare(p, Actual{VendorID: 9, ProductCode: 9})

	var tags []string
	for _, d := range r.OverallDifferences {
		switch {
		case strings.HasPrefix(d, "VendorId"), strings.HasPrefix(d, "ProductCode"):
			tags = append(tags, "basic")
		default:
			tags = append(tags, d[:strings.Index(d, ":")])
		}
	}

	order := map[string]int{"basic": 0, "OD": 1, "SM": 2, "PDO": 3}
	for i := 1; i < len(tags); i++ {
		if order[tags[i]] < order[tags[i-1]] {
			t.Fatalf("sections out of order: %v", tags)
		}
	}
	if tags[0] != "basic" || tags[len(tags)-1] != "PDO" {
		t.Errorf("unexpected tag sequence %v", tags)
	}
}

func TestCompareDeterministic(t *testing.T) {
	p := completeProfile(0x0002, 0x044C2C52)
	p.SyncManagers = p.SyncManagers[2:]
	actual := Actual{VendorID: 0x0003, ProductCode: 0x044C2C52}

	first := Compare(p, actual)
	for i := 0; i < 10; i++ {
		if got := Compare(p, actual); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, got)
		}
	}
	if first.Format() != Compare(p, actual).Format() {
		t.Error("Format output differs between runs")
	}
}

func TestCompareDoesNotModifyProfile(t *testing.T) {
	p := completeProfile(1, 2)
	before := completeProfile(1, 2)
	Compare(p, Actual{VendorID: 3, ProductCode: 4})
	if !reflect.DeepEqual(p, before) {
		t.Error("Compare modified the profile")
	}
}

func identityDevice(vendor uint16, product uint32) channel.Func {
	return func(ctx context.Context, cmd []byte) ([]byte, error) {
		req, err := mailbox.ParseRequest(cmd)
		if err != nil {
			return nil, err
		}
		data := []byte{byte(vendor), byte(vendor >> 8), 0, 0}
		if req.SubIndex == mailbox.ProductCodeSubIndex {
			data = []byte{byte(product), byte(product >> 8), byte(product >> 16), byte(product >> 24)}
		}
		return mailbox.BuildResponse(mailbox.StatusSuccess, req.Index, req.SubIndex, data, mailbox.MinDWordResponseLen), nil
	}
}

func TestCompareLive(t *testing.T) {
	reader := identity.NewReader(mailbox.NewClient(identityDevice(0x0002, 0x044C2C52), 0))
	c := NewComparator(reader)

	r, err := c.CompareLive(context.Background(), completeProfile(0x0002, 0x044C2C52))
	if err != nil {
		t.Fatalf("CompareLive error: %v", err)
	}
	if r.HasDifferences {
		t.Errorf("expected match, got %v", r.OverallDifferences)
	}

	r, err = c.CompareLive(context.Background(), completeProfile(0x0001, 0x044C2C52))
	if err != nil {
		t.Fatalf("CompareLive error: %v", err)
	}
	if !reflect.DeepEqual(r.OverallDifferences, []string{"VendorId mismatch: expected 0x0001, actual 0x0002"}) {
		t.Errorf("OverallDifferences = %v", r.OverallDifferences)
	}
}

func TestCompareLiveChannelError(t *testing.T) {
	failing := channel.Func(func(ctx context.Context, cmd []byte) ([]byte, error) {
		return nil, ecaterr.NewChannelError(ecaterr.ChannelDisconnected, "channel is not connected", nil)
	})
	c := NewComparator(identity.NewReader(mailbox.NewClient(failing, 0)))

	_, err := c.CompareLive(context.Background(), completeProfile(1, 1))
	if !ecaterr.IsDisconnected(err) {
		t.Errorf("expected disconnected error, got %v", err)
	}
}
