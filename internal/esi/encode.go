package esi

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ToElement converts a profile into a canonical document tree.
func ToElement(p *Profile) *Element {
	root := &Element{Name: elemRoot}
	if p.SchemaVersion != "" {
		root.SetAttr(attrVersion, p.SchemaVersion)
	}

	device := root.AddChild("Descriptions", "").AddChild("Devices", "").AddChild("Device", "")

	info := device.AddChild(elemDeviceInfo, "")
	if p.DeviceName != "" {
		info.AddChild("Name", p.DeviceName)
	}
	info.AddChild("VendorID", FormatHex(uint64(p.VendorID), 4))
	info.AddChild("ProductCode", FormatHex(uint64(p.ProductCode), 8))
	info.AddChild("RevisionNo", FormatHex(uint64(p.RevisionNo), 4))
	if p.OrderCode != "" {
		info.AddChild("OrderCode", p.OrderCode)
	}

	if len(p.ObjectDictionary) > 0 {
		od := device.AddChild("ObjectDictionary", "")
		for _, obj := range p.ObjectDictionary {
			el := od.AddChild(elemObjectEntry, "")
			el.SetAttr("Index", FormatHex(uint64(obj.Index), 4))
			el.AddChild("Name", obj.Name)
			el.AddChild("ObjectType", obj.ObjectType)
			el.AddChild("DataType", obj.DataType)
			for _, sub := range obj.SubIndices {
				s := el.AddChild(elemSubIndex, "")
				s.SetAttr("SubIndex", FormatHex(uint64(sub.SubIndex), 2))
				s.AddChild("Name", sub.Name)
				s.AddChild("DataType", sub.DataType)
				if sub.Value != "" {
					s.AddChild("Value", sub.Value)
				}
			}
		}
	}

	if len(p.SyncManagers) > 0 {
		sms := device.AddChild("SyncManagers", "")
		for _, sm := range p.SyncManagers {
			el := sms.AddChild(elemSyncManager, "")
			el.SetAttr("Index", strconv.Itoa(int(sm.Index)))
			el.AddChild("Name", sm.Name)
			el.AddChild("Direction", sm.DirectionText)
			el.AddChild("WatchdogMode", sm.WatchdogMode)
		}
	}

	if len(p.PDOMappings) > 0 {
		pdos := device.AddChild("PDOMappings", "")
		for _, pdo := range p.PDOMappings {
			el := pdos.AddChild(elemPDOMapping, "")
			el.SetAttr("PDOIndex", FormatHex(uint64(pdo.PDOIndex), 4))
			el.AddChild("Direction", pdo.DirectionText)
			for _, e := range pdo.Entries {
				entry := el.AddChild(elemPDOEntry, "")
				entry.SetAttr("ObjectIndex", FormatHex(uint64(e.ObjectIndex), 4))
				entry.SetAttr("SubIndex", FormatHex(uint64(e.SubIndex), 2))
				entry.SetAttr("BitLength", strconv.Itoa(e.BitLength))
			}
		}
	}

	return root
}

// Encode writes p as an indented ESI XML document.
func Encode(w io.Writer, p *Profile) error {
	return WriteXML(w, ToElement(p))
}

// WriteXML writes an element tree as an indented XML document.
func WriteXML(w io.Writer, root *Element) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeXMLElement(enc, root); err != nil {
		return fmt.Errorf("failed to encode %s: %w", root.Name, err)
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeXMLElement(enc *xml.Encoder, el *Element) error {
	start := xml.StartElement{Name: xml.Name{Local: el.Name}}
	for _, a := range el.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}

	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if el.Text != "" {
		if err := enc.EncodeToken(xml.CharData(el.Text)); err != nil {
			return err
		}
	}
	for _, c := range el.Children {
		if err := writeXMLElement(enc, c); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// EncodeYAML writes p in the YAML profile form accepted by ReadYAML.
func EncodeYAML(w io.Writer, p *Profile) error {
	return WriteYAML(w, ToElement(p))
}

// WriteYAML writes an element tree in the YAML profile form.
func WriteYAML(w io.Writer, root *Element) error {
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			yamlString(root.Name),
			yamlNode(root),
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", root.Name, err)
	}
	return enc.Close()
}

func yamlString(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func yamlNode(el *Element) *yaml.Node {
	if len(el.Attrs) == 0 && len(el.Children) == 0 {
		return yamlString(el.Text)
	}

	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range el.Attrs {
		m.Content = append(m.Content, yamlString(yamlAttrPrefix+a.Name), yamlString(a.Value))
	}
	if el.Text != "" {
		m.Content = append(m.Content, yamlString(yamlTextKey), yamlString(el.Text))
	}

	// siblings sharing a name collapse into one sequence, first appearance order
	var order []string
	groups := make(map[string][]*Element)
	for _, c := range el.Children {
		if _, ok := groups[c.Name]; !ok {
			order = append(order, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], c)
	}

	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			m.Content = append(m.Content, yamlString(name), yamlNode(group[0]))
			continue
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range group {
			seq.Content = append(seq.Content, yamlNode(c))
		}
		m.Content = append(m.Content, yamlString(name), seq)
	}

	return m
}
