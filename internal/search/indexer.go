package search

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/department-portal/internal/content"
	"golang.org/x/sync/errgroup"
)

// Source supplies the content collections. *content.Loader implements it.
type Source interface {
	Faculty(ctx context.Context) ([]content.Faculty, error)
	Research(ctx context.Context) ([]content.ResearchProject, error)
	News(ctx context.Context) ([]content.NewsArticle, error)
	Events(ctx context.Context) ([]content.Event, error)
	Publications(ctx context.Context) ([]content.Publication, error)
	Datasets(ctx context.Context) ([]content.Dataset, error)
	Software(ctx context.Context) ([]content.Software, error)
}

// Build loads every collection concurrently and flattens them into entries
// sorted by type then id. A collection that fails to load contributes no
// entries; the failure is logged and never returned.
func Build(ctx context.Context, src Source, logger *slog.Logger) []Entry {
	if logger == nil {
		logger = slog.Default()
	}
	parts := make([][]Entry, len(Types))
	g, gctx := errgroup.WithContext(ctx)

	collect := func(slot int, t Type, fn func(context.Context) ([]Entry, error)) {
		g.Go(func() error {
			entries, err := fn(gctx)
			if err != nil {
				logger.Error("content load failed, indexing nothing for type",
					"type", t,
					"error", err,
				)
				return nil
			}
			parts[slot] = entries
			return nil
		})
	}

	collect(0, TypeFaculty, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Faculty(ctx)
		return mapEntries(items, facultyEntry), err
	})
	collect(1, TypeResearch, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Research(ctx)
		return mapEntries(items, researchEntry), err
	})
	collect(2, TypeNews, func(ctx context.Context) ([]Entry, error) {
		items, err := src.News(ctx)
		return mapEntries(items, newsEntry), err
	})
	collect(3, TypeEvent, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Events(ctx)
		return mapEntries(items, eventEntry), err
	})
	collect(4, TypePublication, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Publications(ctx)
		return mapEntries(items, publicationEntry), err
	})
	collect(5, TypeDataset, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Datasets(ctx)
		return mapEntries(items, datasetEntry), err
	})
	collect(6, TypeSoftware, func(ctx context.Context) ([]Entry, error) {
		items, err := src.Software(ctx)
		return mapEntries(items, softwareEntry), err
	})
	_ = g.Wait()

	var total int
	for _, p := range parts {
		total += len(p)
	}
	entries := make([]Entry, 0, total)
	for _, p := range parts {
		sort.Slice(p, func(i, j int) bool { return p[i].ID < p[j].ID })
		entries = append(entries, p...)
	}
	return entries
}

func mapEntries[T any](items []T, fn func(T) Entry) []Entry {
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

// searchable joins the non-empty parts and case-folds the result.
func searchable(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return fold(strings.Join(kept, " "))
}

// cloneTags copies tags, dropping blanks, and never returns nil.
func cloneTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func pathID(slug, id string) string {
	if slug != "" {
		return slug
	}
	return id
}

func facultyEntry(f content.Faculty) Entry {
	tags := cloneTags(f.ResearchAreas)
	return Entry{
		ID:      f.ID,
		Type:    TypeFaculty,
		Title:   f.Name,
		Summary: f.Title,
		Tags:    tags,
		URL:     "/faculty/" + pathID(f.Slug, f.ID),
		SearchableText: searchable(
			f.Name, f.Title, f.Department, f.Email, f.Office, f.Bio,
			strings.Join(f.ResearchAreas, " "), strings.Join(f.Courses, " "),
		),
	}
}

func researchEntry(r content.ResearchProject) Entry {
	tags := cloneTags(r.Areas)
	return Entry{
		ID:      r.ID,
		Type:    TypeResearch,
		Title:   r.Title,
		Summary: r.Summary,
		Tags:    tags,
		URL:     "/research/" + pathID(r.Slug, r.ID),
		SearchableText: searchable(
			r.Title, r.Summary, r.Description, r.Funding, r.Status,
			strings.Join(r.PrincipalInvestigators, " "), strings.Join(r.Areas, " "),
		),
	}
}

func newsEntry(n content.NewsArticle) Entry {
	tags := cloneTags(n.Tags)
	published := n.PublishedAt
	return Entry{
		ID:      n.ID,
		Type:    TypeNews,
		Title:   n.Title,
		Summary: n.Excerpt,
		Tags:    tags,
		URL:     "/news/" + pathID(n.Slug, n.ID),
		Date:    &published,
		SearchableText: searchable(
			n.Title, n.Excerpt, n.Body, n.Author, n.Category, strings.Join(n.Tags, " "),
		),
	}
}

func eventEntry(e content.Event) Entry {
	tags := cloneTags(e.Tags)
	starts := e.StartsAt
	return Entry{
		ID:      e.ID,
		Type:    TypeEvent,
		Title:   e.Title,
		Summary: e.Description,
		Tags:    tags,
		URL:     "/events/" + pathID(e.Slug, e.ID),
		Date:    &starts,
		SearchableText: searchable(
			e.Title, e.Description, e.Type, e.Location, e.Speaker, strings.Join(e.Tags, " "),
		),
	}
}

func publicationEntry(p content.Publication) Entry {
	tags := cloneTags(p.Keywords)
	return Entry{
		ID:      p.ID,
		Type:    TypePublication,
		Title:   p.Title,
		Summary: p.Venue + " " + strconv.Itoa(p.Year),
		Tags:    tags,
		URL:     "/resources/publications/" + p.ID,
		SearchableText: searchable(
			p.Title, p.Abstract, p.Venue, p.DOI, strconv.Itoa(p.Year),
			strings.Join(p.Authors, " "), strings.Join(p.Keywords, " "),
		),
	}
}

func datasetEntry(d content.Dataset) Entry {
	tags := cloneTags(d.Tags)
	return Entry{
		ID:      d.ID,
		Type:    TypeDataset,
		Title:   d.Title,
		Summary: d.Description,
		Tags:    tags,
		URL:     "/resources/datasets/" + d.ID,
		SearchableText: searchable(
			d.Title, d.Description, d.Format, d.License, strings.Join(d.Tags, " "),
		),
	}
}

func softwareEntry(s content.Software) Entry {
	tags := cloneTags(s.Tags)
	return Entry{
		ID:      s.ID,
		Type:    TypeSoftware,
		Title:   s.Name,
		Summary: s.Description,
		Tags:    tags,
		URL:     "/resources/software/" + s.ID,
		SearchableText: searchable(
			s.Name, s.Description, s.Language, s.License, strings.Join(s.Tags, " "),
		),
	}
}
