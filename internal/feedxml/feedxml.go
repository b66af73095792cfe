// Package feedxml serializes the blog feed to RSS 2.0 and the site map
// to the sitemap.org XML schema, the two XML-shaped outputs named in
// spec §6's Feed collaborator. It only builds byte slices; writing
// them to disk is the executor's job.
package feedxml

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"stbl2/internal/feed"
	"stbl2/internal/model"
	"stbl2/internal/urlmap"
)

// Rss is the RSS 2.0 document root.
type Rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel is the feed's single channel.
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	Ttl           int    `xml:"ttl,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is a single RSS entry.
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description,omitempty"`
	Guid        string `xml:"guid"`
	PubDate     string `xml:"pubDate,omitempty"`
}

func itemHref(baseURL string, href string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
}

func itemSortDate(it feed.Item) time.Time {
	return it.SortDate
}

// RenderRss builds the RSS feed for items, honoring maxItems (0 means
// unlimited) and ttlDays (0 means the ttl element is omitted).
func RenderRss(site model.SiteMeta, items []feed.Item, mapper urlmap.Mapper, maxItems, ttlDays int, buildDate string) ([]byte, error) {
	entries := append([]feed.Item(nil), items...)
	if maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	channel := Channel{
		Title:       site.Title,
		Link:        site.BaseURL,
		Description: site.AbstractText,
		Language:    site.Language,
	}
	if ttlDays > 0 {
		channel.Ttl = ttlDays * 24 * 60
	}
	if buildDate != "" {
		channel.LastBuildDate = buildDate
	}

	for _, it := range entries {
		var title, logicalKey string
		switch it.Kind {
		case feed.ItemPost:
			title = it.Post.Header.Title
			logicalKey = it.Post.UrlPath
		case feed.ItemSeries:
			title = it.Series.Index.Header.Title
			logicalKey = it.Series.Index.UrlPath
		}
		href := mapper.Map(logicalKey).Href
		link := itemHref(site.BaseURL, href)
		var pubDate string
		if d := itemSortDate(it); !d.IsZero() {
			pubDate = d.Format(time.RFC1123Z)
		}
		channel.Items = append(channel.Items, Item{
			Title:   title,
			Link:    link,
			Guid:    link,
			PubDate: pubDate,
		})
	}

	rss := Rss{Version: "2.0", Channel: channel}
	body, err := xml.MarshalIndent(rss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feedxml: marshal rss: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// UrlSet is the sitemap.org document root.
type UrlSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	Urls    []Url    `xml:"url"`
}

// Url is a single sitemap entry.
type Url struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

const sitemapXmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// RenderSitemap builds the sitemap covering every published standalone
// page, series, tag index, and the tags landing page.
func RenderSitemap(site model.SiteMeta, content model.SiteContent, tags map[string][]model.Page, mapper urlmap.Mapper, buildDate string) ([]byte, error) {
	var urls []Url
	add := func(logicalKey string, latest time.Time) {
		href := mapper.Map(logicalKey).Href
		u := Url{Loc: itemHref(site.BaseURL, href)}
		if !latest.IsZero() {
			u.LastMod = latest.Format("2006-01-02")
		} else if buildDate != "" {
			u.LastMod = buildDate
		}
		urls = append(urls, u)
	}

	var pages []model.Page
	for _, p := range content.Pages {
		if feed.IsPublishedPage(p) {
			pages = append(pages, p)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].UrlPath < pages[j].UrlPath })
	for _, p := range pages {
		add(p.UrlPath, sortDatePage(p))
	}

	var seriesList []model.Series
	for _, s := range content.Series {
		if feed.IsPublishedPage(s.Index) && len(feed.IncludedParts(s)) > 0 {
			seriesList = append(seriesList, s)
		}
	}
	sort.Slice(seriesList, func(i, j int) bool { return seriesList[i].Index.UrlPath < seriesList[j].Index.UrlPath })
	for _, s := range seriesList {
		var latest time.Time
		for _, part := range feed.IncludedParts(s) {
			if d := sortDatePage(part.Page); d.After(latest) {
				latest = d
			}
		}
		add(s.Index.UrlPath, latest)
	}

	tagKeys := make([]string, 0, len(tags))
	for tag := range tags {
		tagKeys = append(tagKeys, tag)
	}
	sort.Strings(tagKeys)
	for _, tag := range tagKeys {
		var latest time.Time
		for _, p := range tags[tag] {
			if d := sortDatePage(p); d.After(latest) {
				latest = d
			}
		}
		add("tags/"+url.PathEscape(tag), latest)
	}
	if len(tagKeys) > 0 {
		add("tags", time.Time{})
	}

	set := UrlSet{Xmlns: sitemapXmlns, Urls: urls}
	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("feedxml: marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func sortDatePage(p model.Page) time.Time {
	if p.Header.Published != nil {
		return *p.Header.Published
	}
	if p.Header.Updated != nil {
		return *p.Header.Updated
	}
	return time.Time{}
}
