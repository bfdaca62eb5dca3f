package mikan

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	batchRe      = regexp.MustCompile(`\d{2}-\d{2}`)
	bracketEpRe  = regexp.MustCompile(`\[(\d{2,3})(?:v\d)?\]|\s(\d{2,3})(?:v\d)?\s`)
	chineseEpRe  = regexp.MustCompile(`第(\d+)[话話集]`)
	resolutionRe = regexp.MustCompile(`1080`)
)

// IsFullHD reports whether a release name advertises 1080p.
func IsFullHD(name string) bool {
	return resolutionRe.MatchString(name)
}

// ParseEpisode extracts the episode number from a release name such as
// "[ANi] Title - 03 [1080P][Baha][WEB-DL]". Batch releases ("01-12") are
// rejected.
func ParseEpisode(name string) (int, bool) {
	if batchRe.MatchString(name) {
		return 0, false
	}
	if all := bracketEpRe.FindAllStringSubmatch(name, -1); len(all) > 0 {
		last := all[len(all)-1]
		digits := last[1]
		if digits == "" {
			digits = last[2]
		}
		ep, err := strconv.Atoi(strings.TrimSpace(digits))
		return ep, err == nil
	}
	if m := chineseEpRe.FindStringSubmatch(name); m != nil {
		ep, err := strconv.Atoi(m[1])
		return ep, err == nil
	}
	return 0, false
}
