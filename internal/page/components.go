package page

import (
	"html/template"
	"strings"

	"github.com/himu-me/notepress/internal/content"
)

// homeRecent is how many posts the home page lists.
const homeRecent = 5

// Body is a rendered markdown fragment and its optional table of contents.
type Body struct {
	HTML string
	TOC  string
}

type tagLink struct {
	Name string
	Slug string
}

type postData struct {
	Doc  *content.Document
	Tags []tagLink
	TOC  template.HTML
	Body template.HTML
}

// Home renders the landing page with the newest posts.
func (c *Composer) Home(docs []*content.Document) ([]byte, error) {
	if len(docs) > homeRecent {
		docs = docs[:homeRecent]
	}
	body, err := c.fragment("home", docs)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:          "home",
		Heading:        c.site.Title,
		Section:        SectionHome,
		Path:           "/",
		Body:           body,
		StructuredData: c.websiteLD(),
	})
}

// BlogIndex renders the full post listing.
func (c *Composer) BlogIndex(docs []*content.Document) ([]byte, error) {
	body, err := c.fragment("blog", docs)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:   "blog",
		Section: SectionBlog,
		Path:    "/blog/",
		Body:    body,
	})
}

// TagsIndex renders the list of every tag.
func (c *Composer) TagsIndex(groups []content.TagGroup) ([]byte, error) {
	body, err := c.fragment("tags", groups)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:   "tags",
		Section: SectionBlog,
		Path:    "/tags/",
		Body:    body,
	})
}

// TagPage renders the posts carrying one tag.
func (c *Composer) TagPage(group content.TagGroup) ([]byte, error) {
	body, err := c.fragment("tag", group)
	if err != nil {
		return nil, err
	}
	dir := "/tags/" + group.Slug + "/"
	return c.Compose(Page{
		Title:       "#" + group.Name,
		Section:     SectionBlog,
		Path:        dir,
		Description: "Posts tagged #" + group.Name,
		Body:        body,
		Feeds: []FeedLink{
			{Type: "application/rss+xml", Title: "#" + group.Name, Path: dir + "feed.xml"},
			{Type: "application/atom+xml", Title: "#" + group.Name, Path: dir + "feed.atom"},
		},
	})
}

// Post renders one document page.
func (c *Composer) Post(d *content.Document, b Body) ([]byte, error) {
	data := postData{
		Doc: d,
		// #nosec G203 -- renderer output
		TOC: template.HTML(b.TOC),
		// #nosec G203 -- renderer output
		Body: template.HTML(b.HTML),
	}
	for _, t := range d.Tags {
		data.Tags = append(data.Tags, tagLink{Name: t, Slug: d.TagSlug(t)})
	}
	body, err := c.fragment("post", data)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:          d.Title,
		Heading:        d.Title,
		Section:        SectionBlog,
		Path:           d.URLPath(),
		Description:    d.Description,
		Body:           body,
		StructuredData: c.postingLD(d),
	})
}

// About renders the about page; d is nil when no note claims it.
func (c *Composer) About(d *content.Document, b Body) ([]byte, error) {
	var inner template.HTML
	desc := ""
	if d != nil {
		// #nosec G203 -- renderer output
		inner = template.HTML(b.HTML)
		desc = d.Description
	}
	body, err := c.fragment("about", inner)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:       "about",
		Section:     SectionAbout,
		Path:        "/about/",
		Description: desc,
		Body:        body,
	})
}

// NotFound renders 404.html.
func (c *Composer) NotFound() ([]byte, error) {
	body, err := c.fragment("notfound", nil)
	if err != nil {
		return nil, err
	}
	return c.Compose(Page{
		Title:   "not found",
		Heading: "404",
		Body:    body,
		NoIndex: true,
	})
}

func (c *Composer) websiteLD() map[string]any {
	ld := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     c.site.Title,
	}
	if u := c.CanonicalURL("/"); u != "" {
		ld["url"] = u
	}
	if c.site.Description != "" {
		ld["description"] = c.site.Description
	}
	return ld
}

func (c *Composer) postingLD(d *content.Document) map[string]any {
	ld := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "BlogPosting",
		"headline":      d.Title,
		"datePublished": d.DateString(),
		"dateModified":  d.ModifiedDate(),
		"wordCount":     d.WordCount,
	}
	if d.Description != "" {
		ld["description"] = d.Description
	}
	if len(d.Tags) > 0 {
		ld["keywords"] = strings.Join(d.Tags, ", ")
	}
	if u := c.CanonicalURL(d.URLPath()); u != "" {
		ld["url"] = u
		ld["mainEntityOfPage"] = u
	}
	if c.site.Author != "" {
		ld["author"] = map[string]any{"@type": "Person", "name": c.site.Author}
	}
	return ld
}
