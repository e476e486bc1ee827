package consts

const (
	// ApplicationName 应用名称
	ApplicationName = "BrightTalk Server"

	// ApplicationVersion 后端版本号
	ApplicationVersion = "1.0.0"
)
