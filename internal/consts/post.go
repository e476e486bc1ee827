package consts

const (
	PostTitleMaxRunes   = 120
	PostContentMaxRunes = 65535
	CommentMaxRunes     = 2000
	CategoryNameMaxRunes = 32

	// DefaultPageSize 列表接口默认分页大小
	DefaultPageSize = 20
	MaxPageSize     = 100

	// AttachmentURLPrefix 附件对外访问路径前缀
	AttachmentURLPrefix = "/files/"
)
