package util

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenizer = regexp.MustCompile(`\d+|\D+`)

type token struct {
	text  string
	num   int
	isNum bool
}

func tokenize(s string) []token {
	parts := tokenizer.FindAllString(s, -1)
	tokens := make([]token, len(parts))
	for i, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			tokens[i] = token{num: n, isNum: true}
			continue
		}
		tokens[i] = token{text: strings.ToLower(p)}
	}
	return tokens
}

// NaturalSortLess orders names the way people read episode lists:
// "Show - 2" before "Show - 10", case-insensitively. Numbers sort before
// text at the same position.
func NaturalSortLess(a, b string) bool {
	ta, tb := tokenize(a), tokenize(b)
	for i := 0; i < min(len(ta), len(tb)); i++ {
		x, y := ta[i], tb[i]
		switch {
		case x.isNum != y.isNum:
			return x.isNum
		case x.isNum && x.num != y.num:
			return x.num < y.num
		case !x.isNum && x.text != y.text:
			return x.text < y.text
		}
	}
	return len(ta) < len(tb)
}
