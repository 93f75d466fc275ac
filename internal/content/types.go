// Package content defines the department's static content collections and
// loads them from the JSON files under the configured data directory.
package content

import "time"

// Collection names double as the JSON file stems under the data directory.
const (
	CollectionFaculty      = "faculty"
	CollectionResearch     = "research"
	CollectionNews         = "news"
	CollectionEvents       = "events"
	CollectionPublications = "publications"
	CollectionDatasets     = "datasets"
	CollectionSoftware     = "software"
)

// Collections lists every content collection in load order.
var Collections = []string{
	CollectionFaculty,
	CollectionResearch,
	CollectionNews,
	CollectionEvents,
	CollectionPublications,
	CollectionDatasets,
	CollectionSoftware,
}

// Faculty is a member of the department's academic staff.
type Faculty struct {
	ID            string   `json:"id"`
	Slug          string   `json:"slug"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Department    string   `json:"department"`
	Email         string   `json:"email"`
	Office        string   `json:"office,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	ResearchAreas []string `json:"researchAreas"`
	Courses       []string `json:"courses,omitempty"`
}

// ResearchProject is an active or past research project or lab.
type ResearchProject struct {
	ID                     string   `json:"id"`
	Slug                   string   `json:"slug"`
	Title                  string   `json:"title"`
	Summary                string   `json:"summary"`
	Description            string   `json:"description,omitempty"`
	PrincipalInvestigators []string `json:"principalInvestigators"`
	Areas                  []string `json:"areas"`
	Status                 string   `json:"status"`
	Funding                string   `json:"funding,omitempty"`
	StartYear              int      `json:"startYear,omitempty"`
}

// NewsArticle is a departmental news post.
type NewsArticle struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Event is a seminar, defense, workshop or other calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Location    string    `json:"location"`
	Speaker     string    `json:"speaker,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt,omitempty"`
	Tags        []string  `json:"tags"`
}

// Publication is a paper, book or report authored by department members.
type Publication struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Venue    string   `json:"venue"`
	Year     int      `json:"year"`
	Abstract string   `json:"abstract,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Keywords []string `json:"keywords"`
	FileURL  string   `json:"fileUrl,omitempty"`
}

// Dataset is a downloadable dataset published by the department.
type Dataset struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Format      string   `json:"format"`
	License     string   `json:"license,omitempty"`
	Size        string   `json:"size,omitempty"`
	Tags        []string `json:"tags"`
	DownloadURL string   `json:"downloadUrl"`
}

// Software is a tool or library maintained by the department.
type Software struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	License     string   `json:"license,omitempty"`
	Repository  string   `json:"repository"`
	Tags        []string `json:"tags"`
}
