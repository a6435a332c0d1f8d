package model

// StructuralDocument is the normalized, checkable surface of one content
// item. It is derived from raw HTML, read-only, and discarded after rule
// evaluation for that item.
type StructuralDocument struct {
	// Source identifies the content the document was built from (URL or
	// fixture name). Used for logging only.
	Source string

	Images       []ImageNode
	Headings     []HeadingNode
	Links        []LinkNode
	Tables       []TableNode
	FormControls []FormControlNode
	TextRuns     []TextRunNode
}

// ImageNode is an <img> element.
type ImageNode struct {
	// Src is the image source resolved against the document base URL.
	Src string

	// HasAlt reports whether an alt attribute is present at all.
	// Alt holds its value; an empty Alt with HasAlt==true marks a
	// decorative image, which is valid markup.
	HasAlt bool
	Alt    string

	// Locator is a CSS-selector-ish hint pointing at the element.
	Locator string
}

// HeadingNode is an <h1>..<h6> element.
type HeadingNode struct {
	// Level is 1..6.
	Level int

	// Text is the rendered text content, whitespace-collapsed.
	Text string

	Locator string
}

// LinkNode is an <a> element with an href.
type LinkNode struct {
	// Href is resolved against the document base URL.
	Href string

	// Text is the rendered link text, whitespace-collapsed.
	Text string

	// AriaLabel is the aria-label attribute when present; it counts as
	// the accessible name even when Text is vague.
	AriaLabel string

	Locator string
}

// TableNode is a <table> element.
type TableNode struct {
	// HasHeaderCells reports whether any <th> exists in the table.
	HasHeaderCells bool

	// HasScopeOrIDs reports whether header association markup is present
	// (th[scope] or td[headers]).
	HasScopeOrIDs bool

	// Caption is the <caption> text if any.
	Caption string

	Locator string
}

// FormControlNode is an input, textarea or select element.
type FormControlNode struct {
	// Kind is the element/input type (text, checkbox, select, ...).
	Kind string

	// ID is the element id, used for label[for] association.
	ID string

	// HasLabel reports whether an accessible name was found: a label[for]
	// match, a wrapping <label>, aria-label or aria-labelledby, or a
	// title attribute.
	HasLabel bool

	// Hidden inputs are extracted but exempt from labeling rules.
	Hidden bool

	Locator string
}

// TextRunNode is a run of visible text with contrast-relevant styling when
// it could be resolved from inline styles.
type TextRunNode struct {
	// Text is the run content, whitespace-collapsed.
	Text string

	// Colors is nil when the foreground/background pair could not be
	// resolved; contrast rules must treat that as "unknown", not a fault.
	Colors *ColorPair

	Locator string
}

// ColorPair is a resolved foreground/background color combination.
type ColorPair struct {
	Foreground RGB
	Background RGB
}

// RGB is an 8-bit-per-channel color.
type RGB struct {
	R, G, B uint8
}
