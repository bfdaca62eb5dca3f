package mikan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/anisync-go/internal/discovery"
	"github.com/vrsandeep/anisync-go/internal/models"
)

func setupTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/Home/Bangumi/3310", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `
		<div class="bangumi-poster" style="background-image: url('/images/Bangumi/202404/poster.jpg?width=400');"></div>
		<p class="bangumi-title">无职转生 第二季</p>
		<p class="bangumi-info">放送日期：星期三</p>
		<ul>
		  <li class="leftbar-item"><span><a data-anchor="#382" href="#">喵萌奶茶屋</a></span></li>
		  <li class="leftbar-item"><span><a data-anchor="#583" href="#">ANi</a></span></li>
		  <li class="leftbar-item"><span><a data-anchor="#bad" href="#">Broken</a></span></li>
		</ul>`)
	})

	mux.HandleFunc("/Home/ExpandEpisodeTable", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subtitleGroupId") != "583" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `
		<table>
		<tr><th>番组名</th><th>大小</th><th>更新时间</th><th>下载</th></tr>
		<tr>
		  <td><a class="magnet-link-wrap" href="/Home/Episode/a">[ANi] 无职转生 - 03 [1080P][Baha][WEB-DL]</a><a class="js-magnet" data-clipboard-text="magnet:?xt=a"></a></td>
		  <td>360.2 MB</td><td>2024/04/22</td>
		  <td><a href="/Download/20240422/aaa111.torrent"></a></td>
		</tr>
		<tr>
		  <td><a class="magnet-link-wrap" href="/Home/Episode/b">[ANi] 无职转生 - 04 [720P][Baha][WEB-DL]</a></td>
		  <td>200.0 MB</td><td>2024/04/29</td>
		  <td><a href="/Download/20240429/bbb222.torrent"></a></td>
		</tr>
		<tr>
		  <td><a class="magnet-link-wrap" href="/Home/Episode/c">[ANi] 无职转生 01-12 [1080P] 合集</a></td>
		  <td>4.2 GB</td><td>2024/06/30</td>
		  <td><a href="/Download/20240630/ccc333.torrent"></a></td>
		</tr>
		</table>`)
	})

	mux.HandleFunc("/Download/20240422/aaa111.torrent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("d8:announce"))
	})

	return httptest.NewServer(mux)
}

func TestMikanSource(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	s := New(server.URL, 5*time.Second)
	ctx := context.Background()

	t.Run("Anime", func(t *testing.T) {
		sub, err := s.Anime(ctx, 3310)
		require.NoError(t, err)
		assert.Equal(t, "无职转生 第二季", sub.DisplayName)
		assert.Equal(t, int64(3310), sub.SourceID)
		assert.Equal(t, 3, sub.UpdateSchedule)
		assert.Equal(t, models.KindSeries, sub.Kind)
		assert.Equal(t, "/images/Bangumi/202404/poster.jpg?width=400", sub.ImageURL)
	})

	t.Run("Subgroups", func(t *testing.T) {
		groups, err := s.Subgroups(ctx, 3310)
		require.NoError(t, err)
		assert.Equal(t, []models.ReleaseGroup{
			{GroupID: 382, GroupName: "喵萌奶茶屋"},
			{GroupID: 583, GroupName: "ANi"},
		}, groups)
	})

	t.Run("Seeds keeps 1080p single episodes", func(t *testing.T) {
		seeds, err := s.Seeds(ctx, 3310, 583, models.KindSeries)
		require.NoError(t, err)
		require.Len(t, seeds, 1)
		assert.Equal(t, 3, seeds[0].Episode)
		assert.Equal(t, "/Download/20240422/aaa111.torrent", seeds[0].PayloadLocator)
		assert.Equal(t, "360.2MB", seeds[0].SizeLabel)
		assert.Equal(t, "aaa111.torrent", seeds[0].FileName())
	})

	t.Run("Seeds for a movie ignore resolution and episode", func(t *testing.T) {
		seeds, err := s.Seeds(ctx, 3310, 583, models.KindMovie)
		require.NoError(t, err)
		require.Len(t, seeds, 3)
		for _, seed := range seeds {
			assert.Equal(t, 1, seed.Episode)
		}
	})

	t.Run("Server errors are transient", func(t *testing.T) {
		_, err := s.Seeds(ctx, 3310, 382, models.KindSeries)
		assert.True(t, errors.Is(err, discovery.ErrTransientSource))
	})

	t.Run("FetchPayload", func(t *testing.T) {
		data, err := s.FetchPayload(ctx, "/Download/20240422/aaa111.torrent")
		require.NoError(t, err)
		assert.Equal(t, "d8:announce", string(data))

		_, err = s.FetchPayload(ctx, "/Download/missing.torrent")
		assert.True(t, errors.Is(err, discovery.ErrTransientSource))
	})
}

func TestParseEpisode(t *testing.T) {
	cases := []struct {
		name string
		ep   int
		ok   bool
	}{
		{"[ANi] 无职转生 - 03 [1080P][Baha][WEB-DL][AAC AVC][CHT][MP4]", 3, true},
		{"[喵萌奶茶屋&LoliHouse] 无职转生 / Mushoku Tensei - 12 [WebRip 1080p HEVC-10bit AAC][简繁日内封字幕]", 12, true},
		{"[LoliHouse] Title [05][WebRip 1080p HEVC-10bit AAC]", 5, true},
		{"[桜都字幕组] Title [07v2][1080P][简体内嵌]", 7, true},
		{"[字幕组] 标题 [第8话][1080P]", 8, true},
		{"[ANi] Title 01-12 [1080P]", 0, false},
		{"[ANi] Title [1080P]", 0, false},
	}
	for _, c := range cases {
		ep, ok := ParseEpisode(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.ep, ep, c.name)
	}
}

func TestSeason(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("/Home/BangumiCoverFlowByDayOfWeek", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("year") + "/" + r.URL.Query().Get("seasonStr")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `
		<div class="sk-bangumi" data-dayofweek="0">
		  <ul><li>
		    <span data-src="/images/Bangumi/202404/a.jpg?width=400" data-bangumiid="3310"></span>
		    <div><a href="/Home/Bangumi/3310" title="无职转生 第二季">无职转生 第二季</a></div>
		  </li><li>
		    <span data-src="/images/Bangumi/202404/x.jpg" data-bangumiid="9999"></span>
		  </li></ul>
		</div>
		<div class="sk-bangumi" data-dayofweek="3">
		  <ul><li>
		    <span data-src="/images/Bangumi/202404/b.jpg" data-bangumiid="3311"></span>
		    <div><a href="/Home/Bangumi/3311" title="葬送的芙莉莲">葬送的芙莉莲</a></div>
		  </li></ul>
		</div>
		<div class="sk-bangumi" data-dayofweek="7">
		  <ul><li>
		    <span data-src="/images/Bangumi/202404/c.jpg" data-bangumiid="3312"></span>
		    <div><a href="/Home/Bangumi/3312" title="剧场版 紫罗兰永恒花园">剧场版 紫罗兰永恒花园</a></div>
		  </li></ul>
		</div>
		<div class="sk-bangumi" data-dayofweek="8">
		  <ul><li>
		    <span data-src="/images/Bangumi/202404/d.jpg" data-bangumiid="3313"></span>
		    <div><a href="/Home/Bangumi/3313" title="某 OVA">某 OVA</a></div>
		  </li></ul>
		</div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := New(server.URL, 5*time.Second)
	subs, err := s.Season(context.Background(), 2024, models.Spring)
	require.NoError(t, err)
	assert.Equal(t, "2024/春", query)
	assert.Equal(t, []models.Subscription{
		{SourceID: 3310, DisplayName: "无职转生 第二季", UpdateSchedule: 7, Kind: models.KindSeries, ImageURL: "/images/Bangumi/202404/a.jpg"},
		{SourceID: 3311, DisplayName: "葬送的芙莉莲", UpdateSchedule: 3, Kind: models.KindSeries, ImageURL: "/images/Bangumi/202404/b.jpg"},
		{SourceID: 3312, DisplayName: "剧场版 紫罗兰永恒花园", UpdateSchedule: 8, Kind: models.KindMovie, ImageURL: "/images/Bangumi/202404/c.jpg"},
		{SourceID: 3313, DisplayName: "某 OVA", UpdateSchedule: 9, Kind: models.KindSpecial, ImageURL: "/images/Bangumi/202404/d.jpg"},
	}, subs)

	_, err = s.Season(context.Background(), 2024, models.Season(5))
	assert.Error(t, err)
}
