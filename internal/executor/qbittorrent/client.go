// Package qbittorrent drives a qBittorrent instance through its Web API.
package qbittorrent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/vrsandeep/anisync-go/internal/executor"
)

// Client is a session-based qBittorrent Web API client. The session cookie
// from the login call is kept in a cookie jar and reused by every request.
type Client struct {
	baseURL  *url.URL
	username string
	password string
	client   *http.Client
	limiter  *rate.Limiter

	mu       sync.Mutex
	loggedIn bool
}

var _ executor.Executor = (*Client)(nil)
var (
	_ executor.Versioner  = (*Client)(nil)
	_ executor.SavePather = (*Client)(nil)
)

// New creates a client. requestsPerSecond <= 0 disables pacing.
func New(baseURL, username, password string, timeout time.Duration, requestsPerSecond float64) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid qBittorrent url: %w", err)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL:  u,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout, Jar: jar},
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.ResolveReference(&url.URL{Path: "api/v2/" + path}).String()
}

// Login opens a session. qBittorrent answers "Ok." on success and
// "Fails." on bad credentials, both with status 200.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("auth/login"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %w", executor.ErrExecutor, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		c.loggedIn = false
		return fmt.Errorf("%w: login rejected (%s): %s", executor.ErrExecutor, resp.Status, strings.TrimSpace(string(body)))
	}
	c.loggedIn = true
	log.Debug().Str("url", c.baseURL.String()).Msg("Logged in to qBittorrent")
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.loginLocked(ctx)
}

// do sends the request built by newReq. On 403 the session is assumed
// expired: the client logs in again and retries once.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", executor.ErrExecutor, err)
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", executor.ErrExecutor, req.Method, req.URL.Path, err)
		}
		if resp.StatusCode == http.StatusForbidden && attempt == 0 {
			resp.Body.Close()
			c.mu.Lock()
			c.loggedIn = false
			err := c.loginLocked(ctx)
			c.mu.Unlock()
			if err != nil {
				return nil, err
			}
			continue
		}
		return resp, nil
	}
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.do(ctx, func() (*http.Request, error) {
		target := c.endpoint(path)
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
}

// expectOK drains and closes resp, turning a non-200 status into an error.
func expectOK(resp *http.Response, op string) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
		if strings.TrimSpace(string(body)) == "Fails." {
			return fmt.Errorf("%w: %s: rejected", executor.ErrExecutor, op)
		}
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, executor.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %s: %s", executor.ErrExecutor, op, resp.Status, strings.TrimSpace(string(body)))
}

func (c *Client) AddTorrent(ctx context.Context, payload []byte, fileName, targetDir string) error {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("torrents", fileName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(payload); err != nil {
			return nil, err
		}
		if err := w.WriteField("savepath", targetDir); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("torrents/add"), &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return err
	}
	return expectOK(resp, "add torrent")
}

func (c *Client) DeleteTorrent(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("hashes", id)
	form.Set("deleteFiles", "false")
	resp, err := c.postForm(ctx, "torrents/delete", form)
	if err != nil {
		return err
	}
	return expectOK(resp, "delete torrent")
}

// PauseTorrent uses torrents/pause, falling back to torrents/stop on
// qBittorrent 5 where the endpoint was renamed.
func (c *Client) PauseTorrent(ctx context.Context, id string) error {
	return c.hashAction(ctx, id, "torrents/pause", "torrents/stop")
}

func (c *Client) ResumeTorrent(ctx context.Context, id string) error {
	return c.hashAction(ctx, id, "torrents/resume", "torrents/start")
}

func (c *Client) hashAction(ctx context.Context, id string, paths ...string) error {
	form := url.Values{}
	form.Set("hashes", id)
	var err error
	for _, path := range paths {
		var resp *http.Response
		resp, err = c.postForm(ctx, path, form)
		if err != nil {
			return err
		}
		// A 404 here means the endpoint is unknown, not the torrent.
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			err = fmt.Errorf("%w: %s not supported", executor.ErrExecutor, path)
			continue
		}
		return expectOK(resp, path)
	}
	return err
}

func (c *Client) torrents(ctx context.Context, query url.Values) ([]executor.TorrentInfo, error) {
	resp, err := c.get(ctx, "torrents/info", query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: torrents/info: %s", executor.ErrExecutor, resp.Status)
	}
	var infos []executor.TorrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("%w: decode torrents/info: %w", executor.ErrExecutor, err)
	}
	return infos, nil
}

func (c *Client) QueryTorrentInfo(ctx context.Context, id string) (*executor.TorrentInfo, error) {
	infos, err := c.torrents(ctx, url.Values{"hashes": {id}})
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("torrent %s: %w", id, executor.ErrNotFound)
	}
	return &infos[0], nil
}

func (c *Client) ListCompletedTorrentIds(ctx context.Context) ([]string, error) {
	infos, err := c.torrents(ctx, url.Values{"filter": {"completed"}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.Hash)
	}
	return ids, nil
}

func (c *Client) RenameFile(ctx context.Context, id, oldPath, newPath string) error {
	form := url.Values{}
	form.Set("hash", id)
	form.Set("oldPath", oldPath)
	form.Set("newPath", newPath)
	resp, err := c.postForm(ctx, "torrents/renameFile", form)
	if err != nil {
		return err
	}
	return expectOK(resp, "rename file")
}

// Version returns the Web API version, used as a health check.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "app/webapiVersion", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: webapiVersion: %s", executor.ErrExecutor, resp.Status)
	}
	return strings.TrimSpace(string(body)), nil
}

// DefaultSavePath returns the client's configured download directory.
func (c *Client) DefaultSavePath(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "app/preferences", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: preferences: %s", executor.ErrExecutor, resp.Status)
	}
	var prefs struct {
		SavePath string `json:"save_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&prefs); err != nil {
		return "", fmt.Errorf("%w: decode preferences: %w", executor.ErrExecutor, err)
	}
	return prefs.SavePath, nil
}
