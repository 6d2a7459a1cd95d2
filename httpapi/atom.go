package httpapi

import (
	"encoding/xml"
	"fmt"
	"time"

	"oss.nandlabs.io/jobexec/store"
)

// Atom is a fixed schema, not a general serialization concern, so it is
// hand-written over encoding/xml directly rather than routed through
// codec.Codec (SPEC_FULL.md §6.1).
const atomContentType = "application/atom+xml"

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	ID      string      `xml:"id"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Link    atomLink   `xml:"link"`
	Content atomContent `xml:"content"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomContent struct {
	Type string `xml:"type,attr"`
	Body string `xml:",chardata"`
}

const atomNS = "http://www.w3.org/2005/Atom"

// jobNamesFeed builds the Atom feed for GET /jobs: one entry per distinct
// registered job name, linking to /jobs/{name} (spec.md §6.1).
func jobNamesFeed(basePath string, defs []*store.JobDefinition) *atomFeed {
	feed := &atomFeed{
		Xmlns:   atomNS,
		Title:   "jobexec registered jobs",
		Updated: time.Now().Format(time.RFC3339),
		ID:      basePath,
	}
	for _, d := range defs {
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   d.Name,
			ID:      basePath + "/" + d.Name,
			Updated: formatTime(d.LastNotExecutedAt),
			Link:    atomLink{Rel: "alternate", Href: basePath + "/" + d.Name},
		})
	}
	return feed
}

// jobHistoryFeed builds the Atom feed for GET /jobs/{name}?size=N: the
// latest N records for name (spec.md §6.1).
func jobHistoryFeed(basePath, name string, records []*store.JobRecord) *atomFeed {
	feed := &atomFeed{
		Xmlns:   atomNS,
		Title:   fmt.Sprintf("jobexec history for %s", name),
		Updated: time.Now().Format(time.RFC3339),
		ID:      basePath + "/" + name,
	}
	for _, rec := range records {
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   fmt.Sprintf("%s [%s]", rec.ID, rec.State.String()),
			ID:      basePath + "/" + name + "/" + rec.ID,
			Updated: formatTime(rec.LastModifiedAt),
			Link:    atomLink{Rel: "alternate", Href: basePath + "/" + name + "/" + rec.ID},
			Content: atomContent{
				Type: "text",
				Body: fmt.Sprintf("state=%s priority=%s resultCode=%s", rec.State, rec.Priority, rec.ResultCode),
			},
		})
	}
	return feed
}
