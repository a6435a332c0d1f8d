package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/edaccess/coursecheck/internal/model"
)

// ErrMalformedContent is returned when the input cannot be parsed as HTML at
// all. Merely unusual markup (unclosed tags, stray attributes) never
// triggers it; the parser is permissive by design.
var ErrMalformedContent = errors.New("malformed content")

// Normalize parses raw HTML into the structural document the rule engine
// evaluates. baseURL, when non-empty, is used to resolve relative image and
// link targets. Pure function of its inputs; no I/O.
func Normalize(rawHTML string, baseURL string) (*model.StructuralDocument, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedContent)
	}
	if !utf8.ValidString(rawHTML) {
		return nil, fmt.Errorf("%w: not valid UTF-8 text", ErrMalformedContent)
	}

	// html.Parse is tolerant of broken markup, so a hard error here really
	// means the content is not HTML-shaped at all.
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedContent, err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var base *url.URL
	if baseURL != "" {
		// Best effort; an unparseable base just disables resolution.
		base, _ = url.Parse(baseURL)
	}

	out := &model.StructuralDocument{Source: baseURL}

	extractImages(out, doc, base)
	extractHeadings(out, doc)
	extractLinks(out, doc, base)
	extractTables(out, doc)
	extractFormControls(out, doc)
	extractTextRuns(out, doc)

	return out, nil
}

func getAttr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return v
}

// collapseSpace normalizes rendered text the way a screen reader would
// announce it: runs of whitespace become a single space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func locator(tag string, index int, id string) string {
	if id != "" {
		return tag + "#" + id
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", tag, index+1)
}

func extractImages(out *model.StructuralDocument, doc *goquery.Document, base *url.URL) {
	doc.Find("img").Each(func(i int, img *goquery.Selection) {
		alt, hasAlt := img.Attr("alt")
		out.Images = append(out.Images, model.ImageNode{
			Src:     resolveRef(base, getAttr(img, "src")),
			HasAlt:  hasAlt,
			Alt:     alt,
			Locator: locator("img", i, getAttr(img, "id")),
		})
	})
}

func extractHeadings(out *model.StructuralDocument, doc *goquery.Document) {
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, h *goquery.Selection) {
		tag := goquery.NodeName(h)
		level := int(tag[1] - '0')
		// An img with alt text inside a heading still gives it a name.
		text := collapseSpace(h.Text())
		if text == "" {
			h.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
				if alt := collapseSpace(getAttr(img, "alt")); alt != "" {
					text = alt
					return false
				}
				return true
			})
		}
		out.Headings = append(out.Headings, model.HeadingNode{
			Level:   level,
			Text:    text,
			Locator: locator(tag, i, getAttr(h, "id")),
		})
	})
}

func extractLinks(out *model.StructuralDocument, doc *goquery.Document, base *url.URL) {
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		text := collapseSpace(a.Text())
		if text == "" {
			// Image links are named by their alt text.
			a.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
				if alt := collapseSpace(getAttr(img, "alt")); alt != "" {
					text = alt
					return false
				}
				return true
			})
		}
		out.Links = append(out.Links, model.LinkNode{
			Href:      resolveRef(base, getAttr(a, "href")),
			Text:      text,
			AriaLabel: collapseSpace(getAttr(a, "aria-label")),
			Locator:   locator("a", i, getAttr(a, "id")),
		})
	})
}

func extractTables(out *model.StructuralDocument, doc *goquery.Document) {
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		hasTH := table.Find("th").Length() > 0
		hasAssoc := table.Find("th[scope]").Length() > 0 || table.Find("td[headers]").Length() > 0
		out.Tables = append(out.Tables, model.TableNode{
			HasHeaderCells: hasTH,
			HasScopeOrIDs:  hasAssoc,
			Caption:        collapseSpace(table.Find("caption").First().Text()),
			Locator:        locator("table", i, getAttr(table, "id")),
		})
	})
}

func extractFormControls(out *model.StructuralDocument, doc *goquery.Document) {
	// Collect label[for] targets once so association checks are O(1).
	labeled := map[string]bool{}
	doc.Find("label[for]").Each(func(_ int, l *goquery.Selection) {
		if id := getAttr(l, "for"); id != "" {
			labeled[id] = true
		}
	})

	doc.Find("input, textarea, select").Each(func(i int, ctl *goquery.Selection) {
		tag := goquery.NodeName(ctl)
		kind := tag
		if tag == "input" {
			kind = strings.ToLower(getAttr(ctl, "type"))
			if kind == "" {
				kind = "text"
			}
		}
		id := getAttr(ctl, "id")

		hasLabel := false
		switch {
		case id != "" && labeled[id]:
			hasLabel = true
		case ctl.ParentsFiltered("label").Length() > 0:
			hasLabel = true
		case collapseSpace(getAttr(ctl, "aria-label")) != "":
			hasLabel = true
		case getAttr(ctl, "aria-labelledby") != "":
			hasLabel = true
		case collapseSpace(getAttr(ctl, "title")) != "":
			hasLabel = true
		}

		out.FormControls = append(out.FormControls, model.FormControlNode{
			Kind:     kind,
			ID:       id,
			HasLabel: hasLabel,
			Hidden:   kind == "hidden",
			Locator:  locator(tag, i, id),
		})
	})
}

// extractTextRuns walks elements that directly contain text and tries to
// resolve an inline-style color pair for each. Resolution is best effort:
// the foreground comes from the nearest self-or-ancestor inline color, the
// background from the nearest self-or-ancestor inline background-color.
// Anything unresolved yields Colors == nil, which contrast rules must treat
// as "unknown" rather than failing.
func extractTextRuns(out *model.StructuralDocument, doc *goquery.Document) {
	doc.Find("p, span, div, li, td, a, strong, em, h1, h2, h3, h4, h5, h6").Each(func(i int, sel *goquery.Selection) {
		text := collapseSpace(ownText(sel))
		if text == "" {
			return
		}

		pair := resolveColorPair(sel)
		out.TextRuns = append(out.TextRuns, model.TextRunNode{
			Text:    text,
			Colors:  pair,
			Locator: locator(goquery.NodeName(sel), i, getAttr(sel, "id")),
		})
	})
}

// ownText returns the text directly inside sel, excluding child elements,
// so nested elements don't produce duplicate runs.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func resolveColorPair(sel *goquery.Selection) *model.ColorPair {
	fg, fgOK := nearestStyleColor(sel, "color")
	bg, bgOK := nearestStyleColor(sel, "background-color")
	if !bgOK {
		bg, bgOK = nearestStyleColor(sel, "background")
	}
	if !fgOK || !bgOK {
		return nil
	}
	return &model.ColorPair{Foreground: fg, Background: bg}
}

// nearestStyleColor climbs from sel through its ancestors looking for an
// inline style declaring the given property with a parseable color value.
func nearestStyleColor(sel *goquery.Selection, prop string) (model.RGB, bool) {
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		style := getAttr(cur, "style")
		if style == "" {
			continue
		}
		if val, ok := styleProperty(style, prop); ok {
			if rgb, ok := ParseColor(val); ok {
				return rgb, true
			}
			// Declared but unparseable (gradient, var(), ...): treat the
			// whole chain as unresolved rather than skipping upward past
			// the declaration that actually applies.
			return model.RGB{}, false
		}
	}
	return model.RGB{}, false
}

// styleProperty pulls a single declaration out of an inline style string.
func styleProperty(style, prop string) (string, bool) {
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), prop) {
			return strings.TrimSpace(parts[1]), true
		}
	}
	return "", false
}
