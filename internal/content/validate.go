package content

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// validator accumulates field errors for one item.
type validator map[string]string

func (v validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v[field] = field + " is required"
	}
}

func (v validator) maxLen(field, value string, n int) {
	if _, set := v[field]; !set && len(value) > n {
		v[field] = fmt.Sprintf("%s must be at most %d characters", field, n)
	}
}

func (v validator) oneOf(field, value string, allowed ...string) {
	if _, set := v[field]; set {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = fmt.Sprintf("%s must be one of %s", field, strings.Join(allowed, ", "))
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Fields: v}
}

const maxTitleLength = 300

func (f Faculty) Validate() error {
	v := validator{}
	v.required("id", f.ID)
	v.required("name", f.Name)
	v.required("title", f.Title)
	v.maxLen("name", f.Name, maxTitleLength)
	if f.Email != "" {
		if _, err := mail.ParseAddress(f.Email); err != nil {
			v["email"] = "email is not a valid address"
		}
	}
	return v.err()
}

func (r ResearchProject) Validate() error {
	v := validator{}
	v.required("id", r.ID)
	v.required("title", r.Title)
	v.required("summary", r.Summary)
	v.maxLen("title", r.Title, maxTitleLength)
	if r.Status != "" {
		v.oneOf("status", r.Status, "active", "completed", "planned")
	}
	return v.err()
}

func (n NewsArticle) Validate() error {
	v := validator{}
	v.required("id", n.ID)
	v.required("title", n.Title)
	v.maxLen("title", n.Title, maxTitleLength)
	if n.PublishedAt.IsZero() {
		v["publishedAt"] = "publishedAt is required"
	}
	return v.err()
}

func (e Event) Validate() error {
	v := validator{}
	v.required("id", e.ID)
	v.required("title", e.Title)
	v.maxLen("title", e.Title, maxTitleLength)
	if e.StartsAt.IsZero() {
		v["startsAt"] = "startsAt is required"
	}
	if !e.EndsAt.IsZero() && e.EndsAt.Before(e.StartsAt) {
		v["endsAt"] = "endsAt must not be before startsAt"
	}
	return v.err()
}

func (p Publication) Validate() error {
	v := validator{}
	v.required("id", p.ID)
	v.required("title", p.Title)
	v.maxLen("title", p.Title, maxTitleLength)
	if len(p.Authors) == 0 {
		v["authors"] = "at least one author is required"
	}
	if p.Year < 1900 || p.Year > 2200 {
		v["year"] = "year is out of range"
	}
	return v.err()
}

func (d Dataset) Validate() error {
	v := validator{}
	v.required("id", d.ID)
	v.required("title", d.Title)
	v.required("downloadUrl", d.DownloadURL)
	v.maxLen("title", d.Title, maxTitleLength)
	return v.err()
}

func (s Software) Validate() error {
	v := validator{}
	v.required("id", s.ID)
	v.required("name", s.Name)
	v.required("repository", s.Repository)
	v.maxLen("name", s.Name, maxTitleLength)
	return v.err()
}
