package feeds

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/himu-me/notepress/internal/content"
)

type rssXML struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	AtomXMLNS string     `xml:"xmlns:atom,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	SelfLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        rssGUID  `xml:"guid"`
	PubDate     string   `xml:"pubDate"`
	Description string   `xml:"description"`
	Categories  []string `xml:"category"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RSS renders feed as RSS 2.0.
func RSS(site Site, feed Feed) ([]byte, error) {
	items := make([]rssItem, 0, len(feed.Docs))
	for _, d := range feed.Docs {
		link := site.URL(d.URLPath())
		items = append(items, rssItem{
			Title:       d.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: site.Origin != "", Value: link},
			PubDate:     d.Date.UTC().Format(time.RFC1123Z),
			Description: d.Description,
			Categories:  d.Tags,
		})
	}
	doc := rssXML{
		Version:   "2.0",
		AtomXMLNS: "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         feed.Title,
			Link:          site.URL(feed.Path),
			Description:   feed.Description,
			Language:      site.Language,
			LastBuildDate: latest(feed.Docs).Format(time.RFC1123Z),
			SelfLink:      atomLink{Href: site.URL(feed.RSSPath), Rel: "self", Type: "application/rss+xml"},
			Items:         items,
		},
	}
	return encodeXML(doc)
}

type atomFeed struct {
	XMLName xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	Lang    string      `xml:"xml:lang,attr,omitempty"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Author  *atomAuthor `xml:"author,omitempty"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title      string         `xml:"title"`
	ID         string         `xml:"id"`
	Link       atomLink       `xml:"link"`
	Published  string         `xml:"published"`
	Updated    string         `xml:"updated"`
	Summary    string         `xml:"summary,omitempty"`
	Categories []atomCategory `xml:"category"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Atom renders feed as Atom 1.0.
func Atom(site Site, feed Feed) ([]byte, error) {
	entries := make([]atomEntry, 0, len(feed.Docs))
	for _, d := range feed.Docs {
		link := site.URL(d.URLPath())
		entry := atomEntry{
			Title:     d.Title,
			ID:        atomID(site, d.URLPath()),
			Link:      atomLink{Href: link, Rel: "alternate", Type: "text/html"},
			Published: d.Date.UTC().Format(time.RFC3339),
			Updated:   updated(d).Format(time.RFC3339),
			Summary:   d.Description,
		}
		for _, t := range d.Tags {
			entry.Categories = append(entry.Categories, atomCategory{Term: t})
		}
		entries = append(entries, entry)
	}
	doc := atomFeed{
		Lang:    site.Language,
		Title:   feed.Title,
		ID:      atomID(site, feed.AtomPath),
		Updated: latest(feed.Docs).Format(time.RFC3339),
		Links: []atomLink{
			{Href: site.URL(feed.Path), Rel: "alternate", Type: "text/html"},
			{Href: site.URL(feed.AtomPath), Rel: "self", Type: "application/atom+xml"},
		},
		Entries: entries,
	}
	if site.Author != "" {
		doc.Author = &atomAuthor{Name: site.Author}
	}
	return encodeXML(doc)
}

// atomID is the permanent id of a feed or entry. Atom ids must be absolute
// IRIs, so without an origin a name-based UUID of the site path is used.
func atomID(site Site, p string) string {
	if site.Origin != "" {
		return site.URL(p)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(site.URL(p))).URN()
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Sitemap renders sitemap.xml. It returns nil when no origin is
// configured, since sitemap locations must be absolute.
func Sitemap(site Site, docs []*content.Document, about *content.Document) ([]byte, error) {
	if site.Origin == "" {
		return nil, nil
	}
	newest := ""
	if len(docs) > 0 {
		newest = latest(docs).Format(content.DateLayout)
	}
	aboutMod := ""
	if about != nil {
		aboutMod = updated(about).Format(content.DateLayout)
	}
	urls := []sitemapURL{
		{Loc: site.URL("/"), LastMod: newest},
		{Loc: site.URL("/about/"), LastMod: aboutMod},
		{Loc: site.URL("/blog/"), LastMod: newest},
		{Loc: site.URL("/tags/"), LastMod: newest},
	}
	for _, d := range docs {
		urls = append(urls, sitemapURL{
			Loc:     site.URL(d.URLPath()),
			LastMod: updated(d).Format(content.DateLayout),
		})
	}
	return encodeXML(sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	})
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
