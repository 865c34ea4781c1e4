package feeds

import (
	"encoding/json"
	"fmt"
	"time"
)

const jsonFeedVersion = "https://jsonfeed.org/version/1.1"

type jsonFeed struct {
	Version     string           `json:"version"`
	Title       string           `json:"title"`
	HomePageURL string           `json:"home_page_url"`
	FeedURL     string           `json:"feed_url"`
	Description string           `json:"description,omitempty"`
	Language    string           `json:"language,omitempty"`
	Authors     []jsonFeedAuthor `json:"authors,omitempty"`
	Items       []jsonFeedItem   `json:"items"`
}

type jsonFeedAuthor struct {
	Name string `json:"name"`
}

type jsonFeedItem struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary,omitempty"`
	ContentText   string   `json:"content_text"`
	DatePublished string   `json:"date_published"`
	DateModified  string   `json:"date_modified"`
	Tags          []string `json:"tags,omitempty"`
}

// JSONFeed renders feed as JSON Feed 1.1.
func JSONFeed(site Site, feed Feed) ([]byte, error) {
	items := make([]jsonFeedItem, 0, len(feed.Docs))
	for _, d := range feed.Docs {
		link := site.URL(d.URLPath())
		items = append(items, jsonFeedItem{
			ID:            link,
			URL:           link,
			Title:         d.Title,
			Summary:       d.Description,
			ContentText:   d.Excerpt,
			DatePublished: d.Date.UTC().Format(time.RFC3339),
			DateModified:  updated(d).Format(time.RFC3339),
			Tags:          d.Tags,
		})
	}
	doc := jsonFeed{
		Version:     jsonFeedVersion,
		Title:       feed.Title,
		HomePageURL: site.URL(feed.Path),
		FeedURL:     site.URL(feed.JSONPath),
		Description: feed.Description,
		Language:    site.Language,
		Items:       items,
	}
	if site.Author != "" {
		doc.Authors = []jsonFeedAuthor{{Name: site.Author}}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json feed: %w", err)
	}
	return append(data, '\n'), nil
}
