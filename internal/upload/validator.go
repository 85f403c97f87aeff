package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize 支付凭证大小上限：5 MiB。
const MaxFileSize = 5 << 20

// allowedTypes 凭证只收图片与 PDF。
var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// File 是待校验的上传文件快照（全部字段由调用方提供，本包不做 I/O）。
type File struct {
	Name         string
	DeclaredType string
	Size         int64
	Bytes        []byte
}

// Result 校验产出：错误列表、清洗后的文件名、内容哈希。
// FileHash 目前仅用于审计，不参与去重拦截。
type Result struct {
	IsValid           bool
	Errors            []string
	Warnings          []string
	SanitizedFileName string
	FileHash          string
}

// Validate 对上传文件做完整性校验：
// 1. 大小边界（空文件 / 超限）
// 2. 声明类型白名单
// 3. 魔数嗅探：内容真实类型必须与声明一致，防 Content-Type 伪造
// 纯函数，不产生副作用。
func Validate(f File) Result {
	res := Result{
		SanitizedFileName: SanitizeFilename(f.Name),
	}

	if f.Size == 0 {
		res.Errors = append(res.Errors, "文件为空")
	} else if f.Size > MaxFileSize {
		res.Errors = append(res.Errors, fmt.Sprintf("文件超过大小上限 %d 字节", MaxFileSize))
	}

	declared := strings.ToLower(strings.TrimSpace(f.DeclaredType))
	if !allowedTypes[declared] {
		res.Errors = append(res.Errors, fmt.Sprintf("不支持的文件类型 %q，仅接受 JPEG/PNG/WebP/PDF", f.DeclaredType))
	} else if len(f.Bytes) > 0 {
		// 声明类型合法时才有必要嗅探，区分“类型不允许”与“内容伪造”两类失败。
		detected := mimetype.Detect(f.Bytes)
		if !detected.Is(declared) {
			res.Errors = append(res.Errors,
				fmt.Sprintf("文件内容（%s）与声明类型（%s）不一致", detected.String(), declared))
		}
	}

	// 扩展名缺失属于客户端输入问题，在校验阶段拦下，
	// 不能留到路径生成时才以服务端错误暴露。
	ext := strings.TrimPrefix(filepath.Ext(res.SanitizedFileName), ".")
	if !extPattern.MatchString(ext) {
		res.Errors = append(res.Errors, fmt.Sprintf("文件名缺少合法扩展名（如 .jpg/.png/.pdf）：%q", f.Name))
	}

	if f.Size != int64(len(f.Bytes)) {
		res.Warnings = append(res.Warnings, "声明大小与实际字节数不一致，以实际内容为准")
	}

	sum := sha256.Sum256(f.Bytes)
	res.FileHash = hex.EncodeToString(sum[:])
	res.IsValid = len(res.Errors) == 0
	return res
}

var (
	unsafeChars   = regexp.MustCompile(`[^a-z0-9.-]+`)
	sepRuns       = regexp.MustCompile(`_+`)
	trimSeparator = "_-."
)

// SanitizeFilename 清洗原始文件名：小写、非 [a-z0-9.-] 折叠为下划线、
// 去掉首尾分隔符，保留扩展名。幂等：清洗结果再清洗不变。
func SanitizeFilename(name string) string {
	name = strings.ToLower(filepath.Base(strings.TrimSpace(name)))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = unsafeChars.ReplaceAllString(base, "_")
	base = sepRuns.ReplaceAllString(base, "_")
	base = strings.Trim(base, trimSeparator)
	if base == "" {
		base = "file"
	}

	ext = unsafeChars.ReplaceAllString(ext, "")
	return base + ext
}
