package locator

import (
	"fmt"
	"strings"
)

// Strategy is one way of finding a target, rendered to an XPath expression.
// The set of variants is closed.
type Strategy interface {
	// Name identifies the variant in logs.
	Name() string
	// render builds the expression. needles are the texts the target is
	// known by and roles its ARIA roles. An empty result means the strategy
	// cannot apply.
	render(needles, roles []string) string
}

// ExactAttribute matches an attribute value. With Value set the needles are
// ignored and the fixed value is used instead; Contains relaxes equality to
// a substring test.
type ExactAttribute struct {
	Tag      string
	Attr     string
	Value    string
	Contains bool
}

func (s ExactAttribute) Name() string { return "exact-attribute:" + s.Attr }

func (s ExactAttribute) render(needles, _ []string) string {
	values := needles
	if s.Value != "" {
		values = []string{s.Value}
	}
	pred := anyOf(values, func(lit string) string {
		if s.Contains {
			return fmt.Sprintf("contains(@%s, %s)", s.Attr, lit)
		}
		return fmt.Sprintf("@%s=%s", s.Attr, lit)
	})
	if pred == "" {
		return ""
	}
	return fmt.Sprintf("//%s[%s]", tagOrAny(s.Tag), pred)
}

// StructuralRole matches an element that carries a structural marker
// attribute or one of the target's roles, and whose Attr equals a needle.
type StructuralRole struct {
	Tag    string
	Marker string
	Role   bool
	Attr   string
}

func (s StructuralRole) Name() string {
	if s.Role {
		return "structural-role:role"
	}
	return "structural-role:" + s.Marker
}

func (s StructuralRole) render(needles, roles []string) string {
	var b strings.Builder
	b.WriteString("//" + tagOrAny(s.Tag))
	if s.Marker != "" {
		fmt.Fprintf(&b, "[@%s]", s.Marker)
	}
	if s.Role {
		rp := rolePredicate(roles)
		if rp == "" {
			return ""
		}
		fmt.Fprintf(&b, "[%s]", rp)
	}
	vp := anyOf(needles, func(lit string) string { return fmt.Sprintf("@%s=%s", s.Attr, lit) })
	if vp == "" {
		return ""
	}
	fmt.Fprintf(&b, "[%s]", vp)
	return b.String()
}

// AccessibleLabel matches the aria-label of an element.
type AccessibleLabel struct {
	Tag string
}

func (AccessibleLabel) Name() string { return "accessible-label" }

func (s AccessibleLabel) render(needles, _ []string) string {
	pred := anyOf(needles, func(lit string) string { return "@aria-label=" + lit })
	if pred == "" {
		return ""
	}
	return fmt.Sprintf("//%s[%s]", tagOrAny(s.Tag), pred)
}

// FuzzyText finds a TextTag element whose text contains a needle. Unless
// it targets the text element itself, it climbs to the nearest ancestor
// that has one of the target's roles, the needle as data-value, or a class
// containing ClassHint.
type FuzzyText struct {
	TextTag           string
	AncestorTag       string
	AncestorRoles     bool
	AncestorDataValue bool
	ClassHint         string
}

func (FuzzyText) Name() string { return "fuzzy-text" }

func (s FuzzyText) render(needles, roles []string) string {
	textPred := anyOf(needles, func(lit string) string {
		return fmt.Sprintf("contains(normalize-space(.), %s)", lit)
	})
	if textPred == "" {
		return ""
	}
	base := fmt.Sprintf("//%s[%s]", tagOrAny(s.TextTag), textPred)

	var preds []string
	if s.AncestorRoles {
		if rp := rolePredicate(roles); rp != "" {
			preds = append(preds, rp)
		}
	}
	if s.AncestorDataValue {
		preds = append(preds, anyOf(needles, func(lit string) string { return "@data-value=" + lit }))
	}
	if s.ClassHint != "" {
		preds = append(preds, fmt.Sprintf("contains(@class, %s)", Literal(s.ClassHint)))
	}
	if len(preds) == 0 && s.AncestorTag == "" {
		return base
	}
	ancestor := "/ancestor::" + tagOrAny(s.AncestorTag)
	if len(preds) > 0 {
		ancestor += "[" + strings.Join(preds, " or ") + "]"
	}
	return base + ancestor + "[1]"
}

func tagOrAny(tag string) string {
	if tag == "" {
		return "*"
	}
	return tag
}

func rolePredicate(roles []string) string {
	return anyOf(roles, func(lit string) string { return "@role=" + lit })
}

// anyOf joins one predicate per non-blank value with "or".
func anyOf(values []string, pred func(lit string) string) string {
	var parts []string
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, pred(Literal(v)))
	}
	return strings.Join(parts, " or ")
}

// Literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
