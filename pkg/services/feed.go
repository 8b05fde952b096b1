package services

import (
	"strings"

	"github.com/gorilla/feeds"

	"wingspan/pkg/config"
	"wingspan/pkg/models"
)

// FeedSize is how many articles the RSS feed carries.
const FeedSize = 20

// BuildFeed renders articles, newest first, as an RSS 2.0 document.
func BuildFeed(nav config.Navigation, appURL string, articles []models.Article) ([]byte, error) {
	base := strings.TrimSuffix(appURL, "/")
	feed := &feeds.Feed{
		Title:       nav.SiteName,
		Link:        &feeds.Link{Href: base + "/"},
		Description: nav.SiteDescription,
		Copyright:   nav.Copyright,
	}
	if len(articles) > 0 {
		feed.Created = articles[0].PublishedAt.UTC()
		feed.Updated = feed.Created
	}
	for _, a := range articles {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: base + "/stories/" + a.Slug},
			Id:          a.ID,
			Author:      &feeds.Author{Name: a.Byline()},
			Description: a.Excerpt,
			Created:     a.PublishedAt.UTC(),
		}
		if a.MainImage != "" {
			// Enclosures need a length; the size of stored images is not tracked.
			item.Enclosure = &feeds.Enclosure{Url: absoluteURL(base, a.MainImage), Type: imageMIME(a.MainImage), Length: "0"}
		}
		feed.Items = append(feed.Items, item)
	}

	rss := (&feeds.Rss{Feed: feed}).RssFeed()
	for i, item := range rss.Items {
		item.Category = string(articles[i].Type)
	}
	out, err := feeds.ToXML(rss)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func absoluteURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return base + "/" + strings.TrimPrefix(ref, "/")
}

func imageMIME(ref string) string {
	for ext, typ := range imageTypes {
		if strings.HasSuffix(strings.ToLower(ref), ext) {
			return typ
		}
	}
	return "image/jpeg"
}
