package executor

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressLabel renders a progress fraction the way observers display it,
// e.g. "42.50 %".
func ProgressLabel(progress float64) string {
	return fmt.Sprintf("%.2f %%", progress*100)
}

// InfoView is a display-ready rendering of TorrentInfo.
type InfoView struct {
	TorrentInfo
	SizeLabel     string `json:"size_label"`
	ProgressLabel string `json:"progress_label"`
	SpeedLabel    string `json:"speed_label"`
	ETALabel      string `json:"eta_label"`
}

// 8640000 is qBittorrent's "infinite" eta.
const unknownETA = 8640000

func View(info TorrentInfo) InfoView {
	eta := "∞"
	if info.ETASeconds >= 0 && info.ETASeconds < unknownETA {
		eta = (time.Duration(info.ETASeconds) * time.Second).String()
	}
	return InfoView{
		TorrentInfo:   info,
		SizeLabel:     humanize.Bytes(uint64(max(info.SizeBytes, 0))),
		ProgressLabel: ProgressLabel(info.Progress),
		SpeedLabel:    humanize.Bytes(uint64(max(info.DownloadRateBps, 0))) + "/s",
		ETALabel:      eta,
	}
}
