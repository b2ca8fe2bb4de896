package mock

import (
	"fmt"
	"html"
	"strings"
)

// node is one element of the rendered page.
type node struct {
	tag      string
	id       string
	classes  []string
	attrs    map[string]string
	text     string
	checked  bool
	disabled bool
	children []*node
}

func el(tag, id string, classes ...string) *node {
	return &node{tag: tag, id: id, classes: classes, attrs: map[string]string{}}
}

func (n *node) add(children ...*node) *node {
	n.children = append(n.children, children...)
	return n
}

func (n *node) withText(text string) *node {
	n.text = text
	return n
}

func (n *node) withAttr(name, value string) *node {
	n.attrs[name] = value
	return n
}

// attr returns the value of an attribute as a browser would report it.
func (n *node) attr(name string) (string, bool) {
	switch name {
	case "id":
		return n.id, n.id != ""
	case "class":
		return strings.Join(n.classes, " "), len(n.classes) > 0
	case "checked":
		if n.checked {
			return "true", true
		}
		return "", false
	case "disabled":
		if n.disabled {
			return "true", true
		}
		return "", false
	}
	v, ok := n.attrs[name]
	return v, ok
}

func (n *node) hasClass(class string) bool {
	for _, c := range n.classes {
		if c == class {
			return true
		}
	}
	return false
}

// innerText concatenates the text of n and its descendants.
func (n *node) innerText() string {
	var b strings.Builder
	var walk func(*node)
	walk = func(x *node) {
		b.WriteString(x.text)
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// walk visits n and its descendants in document order with their ancestor chain.
func (n *node) walk(ancestors []*node, visit func(x *node, ancestors []*node) bool) bool {
	if !visit(n, ancestors) {
		return false
	}
	chain := append(ancestors, n)
	for _, c := range n.children {
		if !c.walk(chain, visit) {
			return false
		}
	}
	return true
}

// byID returns the node with the given id, or nil.
func (n *node) byID(id string) *node {
	var found *node
	n.walk(nil, func(x *node, _ []*node) bool {
		if x.id == id {
			found = x
			return false
		}
		return true
	})
	return found
}

// query returns the descendants of n (excluding n) matching sel in document order.
func (n *node) query(sel selector) []*node {
	var out []*node
	for _, c := range n.children {
		c.walk(nil, func(x *node, ancestors []*node) bool {
			if sel.matches(x, ancestors) {
				out = append(out, x)
			}
			return true
		})
	}
	return out
}

// html renders n as markup.
func (n *node) html() string {
	var b strings.Builder
	n.writeHTML(&b)
	return b.String()
}

func (n *node) writeHTML(b *strings.Builder) {
	fmt.Fprintf(b, "<%s", n.tag)
	if n.id != "" {
		fmt.Fprintf(b, " id=%q", n.id)
	}
	if len(n.classes) > 0 {
		fmt.Fprintf(b, " class=%q", strings.Join(n.classes, " "))
	}
	for k, v := range n.attrs {
		fmt.Fprintf(b, " %s=%q", k, html.EscapeString(v))
	}
	if n.checked {
		b.WriteString(" checked")
	}
	if n.tag == "input" {
		b.WriteString(">")
		return
	}
	b.WriteString(">")
	b.WriteString(html.EscapeString(n.text))
	for _, c := range n.children {
		c.writeHTML(b)
	}
	fmt.Fprintf(b, "</%s>", n.tag)
}

// ============================================================================
// Selectors
// ============================================================================

// selector is a descendant chain of compound selectors, e.g. "ul .todo-item".
type selector []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	name  string
	op    string // "", "=", "*=", "^=", "$="
	value string
}

// parseSelector supports tag, #id, .class and [attr op 'value'] parts
// joined by the descendant combinator.
func parseSelector(s string) (selector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty selector")
	}
	var sel selector
	for _, part := range splitOutsideBrackets(s) {
		c, err := parseCompound(part)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", s, err)
		}
		sel = append(sel, c)
	}
	return sel, nil
}

func splitOutsideBrackets(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']':
			depth--
		case r == ' ' && depth == 0:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	readName := func() string {
		start := i
		for i < len(s) && (isNameChar(s[i])) {
			i++
		}
		return s[start:i]
	}

	if i < len(s) && (isNameChar(s[i]) || s[i] == '*') {
		if s[i] == '*' {
			i++
		} else {
			c.tag = strings.ToLower(readName())
		}
	}

	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			c.id = readName()
			if c.id == "" {
				return c, fmt.Errorf("empty id at %d", i)
			}
		case '.':
			i++
			class := readName()
			if class == "" {
				return c, fmt.Errorf("empty class at %d", i)
			}
			c.classes = append(c.classes, class)
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute selector")
			}
			a, err := parseAttr(s[i+1 : i+end])
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, a)
			i += end + 1
		default:
			return c, fmt.Errorf("unsupported character %q", s[i])
		}
	}
	return c, nil
}

func parseAttr(s string) (attrMatch, error) {
	for _, op := range []string{"*=", "^=", "$=", "="} {
		if idx := strings.Index(s, op); idx > 0 {
			value := strings.TrimSpace(s[idx+len(op):])
			value = strings.Trim(value, `'"`)
			return attrMatch{name: strings.TrimSpace(s[:idx]), op: op, value: value}, nil
		}
	}
	name := strings.TrimSpace(s)
	if name == "" {
		return attrMatch{}, fmt.Errorf("empty attribute selector")
	}
	return attrMatch{name: name}, nil
}

func isNameChar(b byte) bool {
	return b == '-' || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (c compound) matches(n *node) bool {
	if c.tag != "" && c.tag != n.tag {
		return false
	}
	if c.id != "" && c.id != n.id {
		return false
	}
	for _, class := range c.classes {
		if !n.hasClass(class) {
			return false
		}
	}
	for _, a := range c.attrs {
		v, ok := n.attr(a.name)
		if !ok {
			return false
		}
		switch a.op {
		case "=":
			ok = v == a.value
		case "*=":
			ok = strings.Contains(v, a.value)
		case "^=":
			ok = strings.HasPrefix(v, a.value)
		case "$=":
			ok = strings.HasSuffix(v, a.value)
		}
		if !ok {
			return false
		}
	}
	return true
}

// matches checks the last compound against n and the rest, in order, against its ancestors.
func (s selector) matches(n *node, ancestors []*node) bool {
	if len(s) == 0 || !s[len(s)-1].matches(n) {
		return false
	}
	want := len(s) - 2
	for i := len(ancestors) - 1; i >= 0 && want >= 0; i-- {
		if s[want].matches(ancestors[i]) {
			want--
		}
	}
	return want < 0
}
