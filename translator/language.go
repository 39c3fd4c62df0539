package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageAliases 界面上常见的语言名称
var languageAliases = map[string]string{
	"chinese":             "zh-Hans",
	"simplified chinese":  "zh-Hans",
	"简体中文":                "zh-Hans",
	"中文":                  "zh-Hans",
	"traditional chinese": "zh-Hant",
	"繁体中文":                "zh-Hant",
	"繁體中文":                "zh-Hant",
	"english":             "en",
	"英语":                  "en",
	"japanese":            "ja",
	"日语":                  "ja",
	"korean":              "ko",
	"韩语":                  "ko",
	"한국어":                 "ko",
	"spanish":             "es",
	"french":              "fr",
	"german":              "de",
	"italian":             "it",
	"portuguese":          "pt",
	"russian":             "ru",
	"arabic":              "ar",
	"hindi":               "hi",
}

// NLLB 与 CLDR 的差异
var (
	nllbScripts = map[string]string{"Kore": "Hang"}
	nllbBases   = map[string]string{"ara": "arb", "fas": "pes", "msa": "zsm"}
)

// ParseLanguage 解析语言名称或 BCP-47 标签
func ParseLanguage(name string) (language.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return language.Und, ErrMissingTargetLanguage
	}
	if alias, ok := languageAliases[strings.ToLower(name)]; ok {
		name = alias
	}

	tag, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
	if err != nil {
		return language.Und, fmt.Errorf("无法识别的语言 %q: %w", name, err)
	}
	return tag, nil
}

// LanguageCode 转为 NLLB 风格的模型语言代码，如 ko → kor_Hang
func LanguageCode(name string) (string, error) {
	// 已是 xxx_Xxxx 形式
	if parts := strings.Split(name, "_"); len(parts) == 2 && len(parts[0]) == 3 && len(parts[1]) == 4 {
		return name, nil
	}

	tag, err := ParseLanguage(name)
	if err != nil {
		return "", err
	}

	base, _ := tag.Base()
	script, _ := tag.Script()

	code, scr := base.ISO3(), script.String()
	if v, ok := nllbBases[code]; ok {
		code = v
	}
	if v, ok := nllbScripts[scr]; ok {
		scr = v
	}
	return code + "_" + scr, nil
}

// ISOCode 两字母语言代码，用于 LibreTranslate 等服务
func ISOCode(name string) (string, error) {
	tag, err := ParseLanguage(name)
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// DisplayName 英文语言名称，用于大模型提示词
func DisplayName(name string) string {
	tag, err := ParseLanguage(name)
	if err != nil {
		return name
	}
	if n := display.English.Tags().Name(tag); n != "" {
		return n
	}
	return name
}
