// Package mikan scrapes the Mikan Project index for release groups and
// torrent releases.
package mikan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/models"
)

// Source implements discovery.Source for mikanani.me.
type Source struct {
	client  *http.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Source {
	return &Source{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ discovery.Source = (*Source)(nil)

func (s *Source) resolve(locator string) string {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator
	}
	if !strings.HasPrefix(locator, "/") {
		locator = "/" + locator
	}
	return s.baseURL + locator
}

func (s *Source) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", discovery.ErrTransientSource, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s returned %s", discovery.ErrTransientSource, target, resp.Status)
	}
	return resp, nil
}

func (s *Source) document(ctx context.Context, target string) (*goquery.Document, error) {
	resp, err := s.get(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", discovery.ErrTransientSource, target, err)
	}
	return doc, nil
}

var (
	posterRe  = regexp.MustCompile(`url\('([^']+)'\)`)
	weekdayRe = regexp.MustCompile(`星期([一二三四五六日天])`)
)

var weekdays = map[string]int{"一": 1, "二": 2, "三": 3, "四": 4, "五": 5, "六": 6, "日": 7, "天": 7}

func (s *Source) Anime(ctx context.Context, sourceID int64) (*models.Subscription, error) {
	doc, err := s.document(ctx, fmt.Sprintf("%s/Home/Bangumi/%d", s.baseURL, sourceID))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(doc.Find(".bangumi-title").First().Text())
	if name == "" {
		return nil, fmt.Errorf("%w: no title found for bangumi %d", discovery.ErrTransientSource, sourceID)
	}

	sub := &models.Subscription{
		SourceID:       sourceID,
		DisplayName:    name,
		UpdateSchedule: 8,
		Kind:           kindFromTitle(name),
	}
	if style, ok := doc.Find(".bangumi-poster").First().Attr("style"); ok {
		if m := posterRe.FindStringSubmatch(style); m != nil {
			sub.ImageURL = m[1]
		}
	}
	doc.Find(".bangumi-info").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if m := weekdayRe.FindStringSubmatch(sel.Text()); m != nil {
			sub.UpdateSchedule = weekdays[m[1]]
			return false
		}
		return true
	})
	return sub, nil
}

func kindFromTitle(title string) models.AnimeKind {
	switch {
	case strings.Contains(title, "剧场版") || strings.Contains(title, "劇場版"):
		return models.KindMovie
	case strings.Contains(title, "OVA") || strings.Contains(title, "OAD"):
		return models.KindSpecial
	}
	return models.KindSeries
}

func (s *Source) Subgroups(ctx context.Context, sourceID int64) ([]models.ReleaseGroup, error) {
	doc, err := s.document(ctx, fmt.Sprintf("%s/Home/Bangumi/%d", s.baseURL, sourceID))
	if err != nil {
		return nil, err
	}

	var groups []models.ReleaseGroup
	doc.Find("li.leftbar-item a[data-anchor]").Each(func(i int, sel *goquery.Selection) {
		anchor, _ := sel.Attr("data-anchor")
		id, err := strconv.ParseInt(strings.TrimPrefix(anchor, "#"), 10, 64)
		if err != nil {
			return
		}
		groups = append(groups, models.ReleaseGroup{
			GroupID:   id,
			GroupName: strings.TrimSpace(sel.Text()),
		})
	})
	return groups, nil
}

func (s *Source) Seeds(ctx context.Context, sourceID, groupID int64, kind models.AnimeKind) ([]models.Seed, error) {
	q := url.Values{}
	q.Set("bangumiId", strconv.FormatInt(sourceID, 10))
	q.Set("subtitleGroupId", strconv.FormatInt(groupID, 10))
	q.Set("take", "65")
	doc, err := s.document(ctx, s.baseURL+"/Home/ExpandEpisodeTable?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var seeds []models.Seed
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		locator, ok := row.Find("a[href$='.torrent']").First().Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Find("a.magnet-link-wrap").Text())
		if name == "" {
			name = strings.TrimSpace(cells.Eq(0).Text())
		}

		episode := 1
		if kind == models.KindSeries {
			if !IsFullHD(name) {
				return
			}
			ep, ok := ParseEpisode(name)
			if !ok {
				return
			}
			episode = ep
		}

		seeds = append(seeds, models.Seed{
			SourceID:       sourceID,
			GroupID:        groupID,
			Episode:        episode,
			PayloadLocator: locator,
			DisplayName:    name,
			SizeLabel:      strings.ReplaceAll(strings.TrimSpace(cells.Eq(1).Text()), " ", ""),
			Status:         models.SeedPending,
		})
	})
	return seeds, nil
}

func (s *Source) FetchPayload(ctx context.Context, locator string) ([]byte, error) {
	resp, err := s.get(ctx, s.resolve(locator))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read payload: %w", discovery.ErrTransientSource, err)
	}
	return data, nil
}
