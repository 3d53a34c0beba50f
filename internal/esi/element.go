package esi

// Attr is a single element attribute
type Attr struct {
	Name  string
	Value string
}

// Element is a node of a structured profile document.
// Text holds the trimmed character data directly inside the element.
type Element struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Element
	Line     int
	Column   int
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the first direct child with the given name.
func (e *Element) ChildText(name string) (string, bool) {
	c := e.Child(name)
	if c == nil {
		return "", false
	}
	return c.Text, true
}

// Descendants returns every element below e with the given name, in
// document order. e itself is not included.
func (e *Element) Descendants(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		out = c.collect(name, out)
	}
	return out
}

// FindAll is Descendants including e itself.
func (e *Element) FindAll(name string) []*Element {
	return e.collect(name, nil)
}

// Find returns the first element named name in e or below it, or nil.
func (e *Element) Find(name string) *Element {
	if e.Name == name {
		return e
	}
	for _, c := range e.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) collect(name string, out []*Element) []*Element {
	if e.Name == name {
		out = append(out, e)
	}
	for _, c := range e.Children {
		out = c.collect(name, out)
	}
	return out
}

// SetAttr adds or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

// AddChild appends a child element and returns it.
func (e *Element) AddChild(name, text string) *Element {
	c := &Element{Name: name, Text: text}
	e.Children = append(e.Children, c)
	return c
}
