// Package urlmap implements the URL-style mapper named as an external
// collaborator in spec §6. It turns a logical key into the concrete
// output path(s) and href the plan builder and executor need, for
// each of the three URL styles.
package urlmap

import (
	"strings"

	"stbl2/internal/model"
)

// Mapping is the result of mapping a logical key under one URL style.
type Mapping struct {
	Href          string
	PrimaryOutput string
	// Fallback is set only for UrlPrettyWithFallback: a redirect stub
	// written at the flat "foo.html" location pointing at Href.
	Fallback string
}

// Mapper maps logical keys to output locations under a single,
// fixed URL style.
type Mapper struct {
	Style model.UrlStyle
}

func New(style model.UrlStyle) Mapper {
	return Mapper{Style: style}
}

// Map implements UrlMapper.map(logical_key) -> {href, primary_output, fallback?}.
func (m Mapper) Map(logicalKey string) Mapping {
	key := strings.Trim(logicalKey, "/")
	switch m.Style {
	case model.UrlPretty:
		if key == "" || key == "index" {
			return Mapping{Href: "/", PrimaryOutput: "index.html"}
		}
		return Mapping{
			Href:          key + "/",
			PrimaryOutput: key + "/index.html",
		}
	case model.UrlPrettyWithFallback:
		if key == "" || key == "index" {
			return Mapping{Href: "/", PrimaryOutput: "index.html"}
		}
		return Mapping{
			Href:          key + "/",
			PrimaryOutput: key + "/index.html",
			Fallback:      key + ".html",
		}
	default: // UrlHtml
		if key == "" || key == "index" {
			return Mapping{Href: "index.html", PrimaryOutput: "index.html"}
		}
		return Mapping{Href: key + ".html", PrimaryOutput: key + ".html"}
	}
}

// MapSeriesIndex maps a series' logical key the same way a page is
// mapped — series indexes live at the directory's logical key.
func (m Mapper) MapSeriesIndex(dirLogicalKey string) Mapping {
	return m.Map(dirLogicalKey)
}
