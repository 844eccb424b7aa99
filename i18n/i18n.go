// Package i18n translates message codes for the server-rendered pages and
// the validation details shown to users.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Default is the language used when nothing better matches.
const Default = "fr"

//go:embed locales/*.yaml
var localeFiles embed.FS

var (
	catalogs  = mustLoad()
	supported = []language.Tag{language.French, language.English}
	matcher   = language.NewMatcher(supported)
)

func mustLoad() map[string]map[string]string {
	entries, err := localeFiles.ReadDir("locales")
	if err != nil {
		panic(err)
	}
	out := make(map[string]map[string]string, len(entries))
	for _, e := range entries {
		raw, err := localeFiles.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			panic(err)
		}
		msgs := map[string]string{}
		if err := yaml.Unmarshal(raw, &msgs); err != nil {
			panic(fmt.Sprintf("i18n: %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), ".yaml")] = msgs
	}
	return out
}

// DetectLanguage picks fr or en from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T returns the message for code in lang, falling back to French and then
// to the code itself.
func T(lang, code string) string {
	if msg, ok := catalogs[lang][code]; ok {
		return msg
	}
	if msg, ok := catalogs[Default][code]; ok {
		return msg
	}
	return code
}

// Details translates every value of a field → code map.
func Details(lang string, codes map[string]string) map[string]string {
	out := make(map[string]string, len(codes))
	for field, code := range codes {
		out[field] = T(lang, code)
	}
	return out
}

// Languages lists the available catalogs.
func Languages() []string {
	out := make([]string, 0, len(supported))
	for _, t := range supported {
		b, _ := t.Base()
		out = append(out, b.String())
	}
	return out
}
