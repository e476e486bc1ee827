package render

import (
	"html"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AttachmentPrefix 是正文中引用帖子附件的目标前缀。
const AttachmentPrefix = "attachment:"

// Attachment 描述正文可引用的一个附件：原始文件名与可持久访问的 URL。
type Attachment struct {
	Filename string
	URL      string
}

// HTML 将正文渲染为 HTML，并把 attachment: 图片引用解析为附件 URL。
//
// 无法解析的引用（附件不存在、没有附件列表）原样保留 Markdown 文本：
// 宁可显示一段可见的坏引用，也不静默丢内容。本函数纯函数、永不报错。
func HTML(content string, attachments []Attachment) string {
	var sb strings.Builder

	for _, tk := range tokenize(content) {
		switch tk.kind {
		case tokenImage:
			sb.WriteString(renderImage(tk, attachments))
		default:
			sb.WriteString(html.EscapeString(tk.raw))
		}
	}

	return sb.String()
}

func renderImage(tk token, attachments []Attachment) string {
	if !strings.HasPrefix(tk.target, AttachmentPrefix) {
		// 普通外链图片直接输出。
		return imgTag(tk.target, tk.alt)
	}

	name := strings.TrimPrefix(tk.target, AttachmentPrefix)
	if att, ok := resolveAttachment(name, attachments); ok {
		return imgTag(att.URL, tk.alt)
	}

	// 附件不存在时保留原文，便于作者发现坏引用。
	return html.EscapeString(tk.raw)
}

// resolveAttachment 按文件名匹配附件：两侧都先做百分号解码 + Unicode NFC 归一，
// 避免同一文件名因编码差异（浏览器转义、mac 分解形式）而匹配失败。
func resolveAttachment(name string, attachments []Attachment) (Attachment, bool) {
	want := normalizeFilename(name)
	if want == "" {
		return Attachment{}, false
	}

	for _, att := range attachments {
		if normalizeFilename(att.Filename) == want {
			return att, true
		}
	}
	return Attachment{}, false
}

func normalizeFilename(name string) string {
	decoded, err := url.PathUnescape(name)
	if err != nil {
		decoded = name
	}
	return norm.NFC.String(decoded)
}

func imgTag(src string, alt string) string {
	return `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(alt) + `">`
}
