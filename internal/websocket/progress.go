package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/anisync-go/internal/models"
)

// ProgressSource reports download progress for a set of torrents. Torrents
// it could not query are returned in failed.
type ProgressSource interface {
	Progress(ctx context.Context, torrents []string) (entries []models.ProgressEntry, failed []string)
}

// ServeProgress streams progress snapshots over one connection. The client
// sends the torrents to watch as a JSON array, of identifiers or of
// objects with a torrent_name field; the server answers with the current
// snapshot every tick until the client sends "STOP" or disconnects.
// Torrents that fail to query are dropped from the watch set.
func ServeProgress(w http.ResponseWriter, r *http.Request, source ProgressSource, tick time.Duration) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	watch := make(chan []string, 1)
	replies := make(chan string, 1)
	go func() {
		defer cancel()
		conn.SetReadLimit(maxMessage)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.TrimSpace(string(data)) == "STOP" {
				log.Debug().Msg("Progress client stopped")
				return
			}
			torrents, err := parseWatchList(data)
			if err != nil {
				select {
				case replies <- "Error parsing tasks":
				default:
				}
				continue
			}
			select {
			case <-watch:
			default:
			}
			watch <- torrents
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var torrents []string
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case torrents = <-watch:
		case msg := <-replies:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			if len(torrents) == 0 {
				continue
			}
			entries, failed := source.Progress(ctx, torrents)
			if len(failed) > 0 {
				torrents = without(torrents, failed)
			}
			if entries == nil {
				entries = []models.ProgressEntry{}
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(entries); err != nil {
				return
			}
		}
	}
}

func parseWatchList(data []byte) ([]string, error) {
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		return ids, nil
	}
	var tasks []struct {
		TorrentName string `json:"torrent_name"`
	}
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	ids = make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.TorrentName != "" {
			ids = append(ids, t.TorrentName)
		}
	}
	return ids, nil
}

func without(list, drop []string) []string {
	dropped := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropped[d] = true
	}
	out := list[:0:0]
	for _, s := range list {
		if !dropped[s] {
			out = append(out, s)
		}
	}
	return out
}
