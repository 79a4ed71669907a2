// Package textutil 提供分词、归一化与截断等文本工具
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateByRunes 按 rune 截断字符串
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// TruncateWithEllipsis 截断并在被截断时追加省略号，结果（含省略号）不超过 maxRunes
func TruncateWithEllipsis(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes == 1 {
		return TruncateByRunes(s, 1)
	}
	return strings.TrimSpace(TruncateByRunes(s, maxRunes-1)) + "…"
}

// Tokenize 将文本切分为小写词元（字母与数字组成）
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContentTokens 返回去除停用词和单字符词元后的词元
func ContentTokens(s string) []string {
	raw := Tokenize(s)
	out := raw[:0]
	for _, tok := range raw {
		if IsStopword(tok) || utf8.RuneCountInString(tok) < 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Normalize 归一化：小写、按词元重新以单空格拼接
func Normalize(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// CollapseSpaces 将任意空白序列压缩为单个空格
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsStopword 判断是否为英文停用词
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`
a about above after again against all also am an and any are as at be because been before being below
between both but by can could did do does doing down during each few for from further had has have having
he her here hers herself him himself his how i if in into is it its itself just let me more most my myself
no nor not now of off on once only or other our ours ourselves out over own same she should so some such
than that the their theirs them themselves then there these they this those through to too under until up
very was we were what when where which while who whom why will with would you your yours yourself
yourselves um uh okay ok yeah like really actually gonna going get got thing things know see one two well
right say said lot kind sort way much many`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
