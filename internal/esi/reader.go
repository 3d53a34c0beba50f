package esi

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"
	"gopkg.in/yaml.v3"

	"github.com/muurk/ecatcheck/internal/ecaterr"
)

// Document formats understood by ReadDocument
const (
	FormatXML  = "xml"
	FormatYAML = "yaml"
)

// yaml keys with special meaning
const (
	yamlAttrPrefix = "@"
	yamlTextKey    = "#text"
)

// FormatFromName picks a document format from a file name. Anything that is
// not .yaml or .yml is treated as XML.
func FormatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatXML
	}
}

// ReadDocument reads a profile document, choosing the reader from the file
// name extension.
func ReadDocument(name string, r io.Reader) (*Element, error) {
	if FormatFromName(name) == FormatYAML {
		return ReadYAML(r)
	}
	return ReadXML(r)
}

// ReadXML builds an Element tree from an XML document. Namespaces are
// dropped; element and attribute names are local names. Non-UTF-8 encodings
// declared in the prolog (ISO-8859-1 is common in ESI files) are decoded.
func ReadXML(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *Element
		stack []*Element
		texts []*strings.Builder
	)

	for {
		line, col := dec.InputPos()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ecaterr.NewMalformedProfile("document is not well-formed XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local, Line: line, Column: col}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, ecaterr.NewMalformedProfile("document has more than one root element", nil)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			texts = append(texts, &strings.Builder{})

		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}

		case xml.EndElement:
			el := stack[len(stack)-1]
			el.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}

	if root == nil {
		return nil, ecaterr.NewMalformedProfile("document has no root element", nil)
	}
	return root, nil
}

// ReadYAML builds an Element tree from a YAML profile.
//
// The document must be a mapping with a single key naming the root element.
// Mapping keys become child elements, keys starting with "@" become
// attributes, "#text" sets element text, scalar values become element text,
// and a sequence repeats its key once per item.
func ReadYAML(r io.Reader) (*Element, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ecaterr.NewMalformedProfile("document is empty", nil)
		}
		return nil, ecaterr.NewMalformedProfile("document is not valid YAML", err)
	}

	top := resolveAlias(&doc)
	if top.Kind == yaml.DocumentNode && len(top.Content) > 0 {
		top = resolveAlias(top.Content[0])
	}
	if top.Kind != yaml.MappingNode || len(top.Content) != 2 {
		return nil, ecaterr.NewMalformedProfile(
			fmt.Sprintf("YAML document must be a mapping with exactly one root key (line %d)", top.Line), nil)
	}

	elems, err := yamlElements(top.Content[0], top.Content[1])
	if err != nil {
		return nil, err
	}
	if len(elems) != 1 {
		return nil, ecaterr.NewMalformedProfile("YAML root key must hold a single mapping", nil)
	}
	return elems[0], nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func yamlElements(key, value *yaml.Node) ([]*Element, error) {
	value = resolveAlias(value)
	name := key.Value

	switch value.Kind {
	case yaml.ScalarNode:
		text := value.Value
		if value.Tag == "!!null" {
			text = ""
		}
		return []*Element{{Name: name, Text: text, Line: value.Line, Column: value.Column}}, nil

	case yaml.SequenceNode:
		var out []*Element
		for _, item := range value.Content {
			item = resolveAlias(item)
			if item.Kind == yaml.SequenceNode {
				return nil, ecaterr.NewMalformedProfile(
					fmt.Sprintf("%s: nested sequences are not supported (line %d)", name, item.Line), nil)
			}
			els, err := yamlElements(key, item)
			if err != nil {
				return nil, err
			}
			out = append(out, els...)
		}
		return out, nil

	case yaml.MappingNode:
		el := &Element{Name: name, Line: value.Line, Column: value.Column}
		for i := 0; i+1 < len(value.Content); i += 2 {
			k, v := value.Content[i], resolveAlias(value.Content[i+1])
			switch {
			case strings.HasPrefix(k.Value, yamlAttrPrefix):
				if v.Kind != yaml.ScalarNode {
					return nil, ecaterr.NewMalformedProfile(
						fmt.Sprintf("%s: attribute %s must be a scalar (line %d)", name, k.Value, v.Line), nil)
				}
				el.Attrs = append(el.Attrs, Attr{Name: strings.TrimPrefix(k.Value, yamlAttrPrefix), Value: v.Value})
			case k.Value == yamlTextKey:
				el.Text = strings.TrimSpace(v.Value)
			default:
				children, err := yamlElements(k, v)
				if err != nil {
					return nil, err
				}
				el.Children = append(el.Children, children...)
			}
		}
		return []*Element{el}, nil

	default:
		return nil, ecaterr.NewMalformedProfile(
			fmt.Sprintf("%s: unsupported YAML node (line %d)", name, value.Line), nil)
	}
}
