package mikan

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vrsandeep/anisync-go/internal/models"
)

var seasonNames = map[models.Season]string{
	models.Spring: "春",
	models.Summer: "夏",
	models.Autumn: "秋",
	models.Winter: "冬",
}

// Mikan groups its cover flow by weekday: 0 is Sunday, 7 holds movies and
// 8 holds OVAs.
const (
	coverFlowMovies = 7
	coverFlowOVAs   = 8
)

// Season scrapes the weekly cover flow of one broadcast season. Entries
// without a title link are skipped.
func (s *Source) Season(ctx context.Context, year int, season models.Season) ([]models.Subscription, error) {
	name, ok := seasonNames[season]
	if !ok {
		return nil, fmt.Errorf("unknown season %d", season)
	}
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("seasonStr", name)
	doc, err := s.document(ctx, s.baseURL+"/Home/BangumiCoverFlowByDayOfWeek?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var out []models.Subscription
	doc.Find("div.sk-bangumi").Each(func(i int, day *goquery.Selection) {
		dayOfWeek, err := strconv.Atoi(day.AttrOr("data-dayofweek", ""))
		if err != nil {
			return
		}
		kind, schedule := models.KindSeries, dayOfWeek
		switch dayOfWeek {
		case coverFlowMovies:
			kind, schedule = models.KindMovie, 8
		case coverFlowOVAs:
			kind, schedule = models.KindSpecial, 9
		case 0:
			schedule = 7
		}

		titles := make(map[int64]string)
		day.Find("a[title]").Each(func(i int, a *goquery.Selection) {
			id, err := strconv.ParseInt(path.Base(a.AttrOr("href", "")), 10, 64)
			if err == nil {
				titles[id] = strings.TrimSpace(a.AttrOr("title", ""))
			}
		})

		day.Find("span[data-bangumiid]").Each(func(i int, span *goquery.Selection) {
			id, err := strconv.ParseInt(span.AttrOr("data-bangumiid", ""), 10, 64)
			if err != nil {
				return
			}
			title, ok := titles[id]
			if !ok || title == "" {
				return
			}
			image, _, _ := strings.Cut(span.AttrOr("data-src", ""), "?")
			out = append(out, models.Subscription{
				SourceID:       id,
				DisplayName:    title,
				UpdateSchedule: schedule,
				Kind:           kind,
				ImageURL:       image,
			})
		})
	})
	return out, nil
}
