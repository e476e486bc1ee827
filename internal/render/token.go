package render

import "strings"

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenImage
)

// token 是正文切分后的最小单元：普通文本段，或一个 Markdown 图片引用。
// raw 始终保留原始文本，图片引用解析失败时按原文回退输出。
type token struct {
	kind   tokenKind
	raw    string
	alt    string
	target string
}

// tokenize 将正文切分为文本段与图片引用（![alt](target)）的序列。
// 只识别完整闭合的图片语法，其余内容一律作为文本段保留。
func tokenize(input string) []token {
	var tokens []token
	var textStart int

	i := 0
	for i < len(input) {
		if input[i] != '!' || i+1 >= len(input) || input[i+1] != '[' {
			i++
			continue
		}

		img, consumed, ok := parseImageRef(input[i:])
		if !ok {
			i++
			continue
		}

		if textStart < i {
			tokens = append(tokens, token{kind: tokenText, raw: input[textStart:i]})
		}
		tokens = append(tokens, img)
		i += consumed
		textStart = i
	}

	if textStart < len(input) {
		tokens = append(tokens, token{kind: tokenText, raw: input[textStart:]})
	}

	return tokens
}

// parseImageRef 尝试从 s 的开头解析一个图片引用，s 必须以 "![" 开头。
// 返回解析出的 token、消费的字节数以及是否成功。
func parseImageRef(s string) (token, int, bool) {
	altEnd := strings.IndexByte(s[2:], ']')
	if altEnd < 0 {
		return token{}, 0, false
	}
	altEnd += 2

	if altEnd+1 >= len(s) || s[altEnd+1] != '(' {
		return token{}, 0, false
	}

	targetEnd := strings.IndexByte(s[altEnd+2:], ')')
	if targetEnd < 0 {
		return token{}, 0, false
	}
	targetEnd += altEnd + 2

	consumed := targetEnd + 1
	return token{
		kind:   tokenImage,
		raw:    s[:consumed],
		alt:    s[2:altEnd],
		target: strings.TrimSpace(s[altEnd+2 : targetEnd]),
	}, consumed, true
}
