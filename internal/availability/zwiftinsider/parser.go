package zwiftinsider

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ridedeck/ridedeck/internal/availability"
)

const (
	dayCellClassPrefix = "spiffy-day-"
	dayCellMarker      = "day-with-date"
	dayNumberClass     = "day-number"
	titleClass         = "spiffy-title"
)

// punctuation the calendar emits as entities
var titleReplacer = strings.NewReplacer("–", "-", "…", "...")

// ParseSchedule extracts the guest worlds per day from a month calendar page.
// Days without a day number or without titles are skipped.
func ParseSchedule(r io.Reader, year int, month time.Month) (availability.Schedule, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule html: %w", err)
	}

	schedule := availability.Schedule{}
	for cell := range findAll(doc, isDayCell) {
		day, ok := dayNumber(cell)
		if !ok {
			continue
		}

		var titles []string
		for node := range findAll(cell, hasExactClass(titleClass)) {
			title := availability.NormalizeWorldName(titleReplacer.Replace(textContent(node)))
			if title == "" || slices.Contains(titles, title) {
				continue
			}
			titles = append(titles, title)
		}
		if len(titles) == 0 {
			continue
		}

		date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
		schedule[date] = titles
	}
	return schedule, nil
}

func isDayCell(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "td" {
		return false
	}
	class := classAttr(n)
	return strings.HasPrefix(class, dayCellClassPrefix) && slices.Contains(strings.Fields(class), dayCellMarker)
}

func dayNumber(cell *html.Node) (int, bool) {
	for span := range findAll(cell, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "span" && strings.HasPrefix(classAttr(n), dayNumberClass)
	}) {
		day, err := strconv.Atoi(strings.TrimSpace(textContent(span)))
		if err != nil || day <= 0 {
			continue
		}
		return day, true
	}
	return 0, false
}

func hasExactClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && classAttr(n) == class
	}
}

func classAttr(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// findAll yields matching nodes in document order without descending into matches.
func findAll(root *html.Node, match func(*html.Node) bool) func(yield func(*html.Node) bool) {
	return func(yield func(*html.Node) bool) {
		var walk func(*html.Node) bool
		walk = func(n *html.Node) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if match(c) {
					if !yield(c) {
						return false
					}
					continue
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(root)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
