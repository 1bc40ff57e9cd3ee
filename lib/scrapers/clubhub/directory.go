package clubhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gymops-backend/lib/htmlutil"
	"gymops-backend/lib/textutil"
	"gymops-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrMemberNotFound = fmt.Errorf("no member matched the directory query")

const membersListPath = "/members/directory"
const autocompletePath = "/api/members/suggest"

// seed keywords swept across the autocomplete endpoint when the
// listing page comes back empty
var autocompleteSeeds = []string{"a", "e", "i", "o", "u", "s", "m", "r", "t", "n"}

// member identifiers show up in hrefs in a couple of spellings
var memberHrefRegex = regexp.MustCompile(`(?:member(?:Id|_id)=|/members?/)(\d+)`)

var phoneRegex = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)

// jaro-winkler floor for the fuzzy name fallback, anything looser
// starts matching unrelated members
const fuzzyNameThreshold = 0.93

// DirectoryEntry is scraped, not authoritative: the identifier is
// trustworthy, name/email/phone are best-effort and may be stale or
// missing.
type DirectoryEntry struct {
	Id    string
	Name  string
	Email string
	Phone string
}

type LookupQuery struct {
	Name  string
	Email string
	Phone string
}

type directoryIndex struct {
	entries map[string]DirectoryEntry
	byEmail map[string]string
	byName  map[string]string
	byPhone map[string]string
	builtAt time.Time
}

func (idx *directoryIndex) fresh(ttl time.Duration) bool {
	return idx != nil && timezone.Now().Sub(idx.builtAt) < ttl
}

// Lookup resolves a member identifier from a name, email or phone
// number. there is no search API on the portal, the index is scraped
// from listing pages and cached for the directory TTL. ErrMemberNotFound
// is expected and non-fatal, callers fall back to manual id entry.
func (c *Client) Lookup(ctx context.Context, query LookupQuery) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Lookup")
	defer span.End()

	idx := c.dir
	if !idx.fresh(c.dirTTL) {
		rebuilt, err := c.rebuildDirectory(ctx)
		if err != nil {
			if idx == nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "directory rebuild failed")
				return "", err
			}
			// keep serving the stale snapshot rather than failing
			slog.WarnContext(ctx, "directory rebuild failed, using stale index", "err", err)
		} else {
			// whole-index swap: concurrent readers of the old snapshot
			// see a consistent view, never a torn one
			c.dir = rebuilt
			idx = rebuilt
		}
	}

	if query.Email != "" {
		if id, ok := idx.byEmail[textutil.NormalizeEmail(query.Email)]; ok {
			return id, nil
		}
	}
	if query.Name != "" {
		if id, ok := idx.byName[textutil.NormalizeName(query.Name)]; ok {
			return id, nil
		}
	}
	if query.Phone != "" {
		if id, ok := idx.byPhone[textutil.NormalizePhone(query.Phone)]; ok {
			return id, nil
		}
	}

	if query.Name != "" {
		if id := fuzzyNameMatch(idx, query.Name); id != "" {
			span.SetAttributes(attribute.String("match", "fuzzy_name"))
			return id, nil
		}
	}

	span.SetStatus(codes.Ok, ErrMemberNotFound.Error())
	return "", ErrMemberNotFound
}

func fuzzyNameMatch(idx *directoryIndex, name string) string {
	target := textutil.NormalizeName(name)

	var bestId string
	var bestScore float64
	for key, id := range idx.byName {
		score := matchr.JaroWinkler(target, key, false)
		if score > bestScore {
			bestScore = score
			bestId = id
		}
	}
	if bestScore >= fuzzyNameThreshold {
		return bestId
	}
	return ""
}

func (c *Client) rebuildDirectory(ctx context.Context) (*directoryIndex, error) {
	ctx, span := tracer.Start(ctx, "client:rebuildDirectory")
	defer span.End()

	entries, err := c.scrapeListing(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		// the listing page silently renders empty for some operator
		// accounts, the autocomplete sweep is the backup discovery path
		entries = c.sweepAutocomplete(ctx)
	}

	idx := buildIndex(entries)
	span.SetAttributes(attribute.Int("entries", len(idx.entries)))
	return idx, nil
}

func (c *Client) scrapeListing(ctx context.Context) ([]DirectoryEntry, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(membersListPath)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}

	var entries []DirectoryEntry
	doc.Find("a").Each(func(_ int, anchor *goquery.Selection) {
		href := anchor.AttrOr("href", "")
		groups := memberHrefRegex.FindStringSubmatch(href)
		if len(groups) < 2 {
			return
		}

		name := htmlutil.CleanText(anchor.Text())

		// email and phone live somewhere in the same row/container
		container := anchor.Closest("tr, li, .member-row")
		if container.Length() == 0 {
			container = anchor.Parent()
		}
		email := strings.TrimPrefix(
			container.Find("a[href^='mailto:']").AttrOr("href", ""),
			"mailto:",
		)
		phone := phoneRegex.FindString(container.Text())

		entries = append(entries, DirectoryEntry{
			Id:    groups[1],
			Name:  name,
			Email: email,
			Phone: phone,
		})
	})

	return entries, nil
}

type suggestionJson struct {
	Id    json.Number `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Phone string      `json:"phone"`
}

func (c *Client) sweepAutocomplete(ctx context.Context) []DirectoryEntry {
	ctx, span := tracer.Start(ctx, "client:sweepAutocomplete")
	defer span.End()

	var entries []DirectoryEntry
	for _, seed := range autocompleteSeeds {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("q", seed).
			Get(autocompletePath)
		if err != nil || res.StatusCode() >= 400 {
			continue
		}

		// empty or unparseable responses are silently skipped, the
		// endpoint reports nothing distinguishable from "no results"
		var suggestions []suggestionJson
		if err := json.Unmarshal(res.Body(), &suggestions); err != nil {
			continue
		}
		for _, s := range suggestions {
			if s.Id.String() == "" {
				continue
			}
			entries = append(entries, DirectoryEntry{
				Id:    s.Id.String(),
				Name:  s.Name,
				Email: s.Email,
				Phone: s.Phone,
			})
		}
	}

	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries
}

// deduplicates by identifier, filling missing fields from duplicate
// sightings without overwriting present ones
func buildIndex(entries []DirectoryEntry) *directoryIndex {
	merged := map[string]DirectoryEntry{}
	for _, e := range entries {
		existing, ok := merged[e.Id]
		if !ok {
			merged[e.Id] = e
			continue
		}
		if existing.Name == "" {
			existing.Name = e.Name
		}
		if existing.Email == "" {
			existing.Email = e.Email
		}
		if existing.Phone == "" {
			existing.Phone = e.Phone
		}
		merged[e.Id] = existing
	}

	idx := &directoryIndex{
		entries: merged,
		byEmail: map[string]string{},
		byName:  map[string]string{},
		byPhone: map[string]string{},
		builtAt: timezone.Now(),
	}
	for id, e := range merged {
		if e.Email != "" {
			idx.byEmail[textutil.NormalizeEmail(e.Email)] = id
		}
		if e.Name != "" {
			idx.byName[textutil.NormalizeName(e.Name)] = id
		}
		if e.Phone != "" {
			if p := textutil.NormalizePhone(e.Phone); p != "" {
				idx.byPhone[p] = id
			}
		}
	}
	return idx
}

// FindInPage scans a listing page for an anchor that both names the
// member and carries an identifier. a loose match (an anchor with no
// id-bearing href) is only trusted when the searched name appears in
// the anchor text itself, otherwise the first link on an unrelated
// page would win.
func (c *Client) FindInPage(ctx context.Context, page, name string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:FindInPage")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(page)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", err
	}

	target := textutil.NormalizeName(name)
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a")) {
		text := textutil.NormalizeName(anchor.Name)
		if text == "" || !strings.Contains(text, target) {
			continue
		}
		if groups := memberHrefRegex.FindStringSubmatch(anchor.Href); len(groups) >= 2 {
			return groups[1], nil
		}
	}

	// no anchor carried an id itself, look for one in the container
	// surrounding an anchor that names the member
	found := ""
	doc.Find("a").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		text := textutil.NormalizeName(anchor.Text())
		if text == "" || !strings.Contains(text, target) {
			return true
		}
		container := anchor.Closest("tr, li, .member-row")
		if container.Length() == 0 {
			return true
		}
		html, err := container.Html()
		if err != nil {
			return true
		}
		if groups := memberHrefRegex.FindStringSubmatch(html); len(groups) >= 2 {
			found = groups[1]
			return false
		}
		return true
	})

	if found == "" {
		return "", ErrMemberNotFound
	}
	return found, nil
}
