package pdf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// fontCandidates 按目标语言排列的 TrueType 字体候选（相对字体目录）
//
// 只列 .ttf：gofpdf 与 gopdf 都不支持 .ttc 集合文件。
var fontCandidates = map[string]map[string][]string{
	"linux": {
		"zh": {"truetype/droid/DroidSansFallbackFull.ttf", "truetype/droid/DroidSansFallback.ttf", "truetype/arphic-gbsn00lp/gbsn00lp.ttf"},
		"ja": {"truetype/takao-gothic/TakaoPGothic.ttf", "truetype/vlgothic/VL-Gothic-Regular.ttf", "truetype/ipa/ipag.ttf"},
		"ko": {"truetype/nanum/NanumGothic.ttf", "truetype/nanum/NanumMyeongjo.ttf", "truetype/baekmuk/gulim.ttf", "truetype/baekmuk/batang.ttf"},
		"":   {"truetype/dejavu/DejaVuSans.ttf", "truetype/liberation/LiberationSans-Regular.ttf", "truetype/noto/NotoSans-Regular.ttf"},
	},
	"darwin": {
		"zh": {"Supplemental/Songti.ttf", "Supplemental/Arial Unicode.ttf"},
		"ja": {"Supplemental/Arial Unicode.ttf"},
		"ko": {"Supplemental/AppleGothic.ttf", "Supplemental/AppleMyungjo.ttf", "Supplemental/Arial Unicode.ttf"},
		"":   {"Supplemental/Arial.ttf", "Supplemental/Arial Unicode.ttf"},
	},
	"windows": {
		"zh": {"simhei.ttf", "simkai.ttf", "simfang.ttf"},
		"ja": {"msgothic.ttf", "YuGothR.ttf"},
		"ko": {"malgun.ttf", "NanumGothic.ttf"},
		"":   {"arial.ttf", "calibri.ttf", "tahoma.ttf", "times.ttf"},
	},
}

// fontDirs 当前系统的字体目录
func fontDirs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{filepath.Join(os.Getenv("WINDIR"), "Fonts")}
	case "darwin":
		return []string{"/System/Library/Fonts", "/Library/Fonts", filepath.Join(os.Getenv("HOME"), "Library", "Fonts")}
	default:
		return []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(os.Getenv("HOME"), ".fonts")}
	}
}

// baseLanguage 语言标签的主语言部分，如 "zh-CN" → "zh"
func baseLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	switch lang {
	case "chinese":
		return "zh"
	case "japanese":
		return "ja"
	case "korean":
		return "ko"
	}
	return lang
}

// FindSystemFont 查找适合目标语言的系统字体，找不到返回空串
func FindSystemFont(language string) string {
	table, ok := fontCandidates[runtime.GOOS]
	if !ok {
		table = fontCandidates["linux"]
	}

	candidates := append([]string{}, table[baseLanguage(language)]...)
	candidates = append(candidates, table[""]...)

	for _, dir := range fontDirs() {
		if path := firstExisting(dir, candidates); path != "" {
			return path
		}
	}
	return ""
}

// ResolveFont 优先使用配置的字体文件，否则按语言查找系统字体
func ResolveFont(configured, language string) string {
	if configured != "" && fileExists(configured) {
		return configured
	}
	return FindSystemFont(language)
}

// FontFamily 字体文件对应的族名
func FontFamily(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func firstExisting(baseDir string, candidates []string) string {
	for _, candidate := range candidates {
		full := filepath.Join(baseDir, candidate)
		if fileExists(full) {
			return full
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
