// Package view renders the few server-side pages (login, onboarding,
// subscription pages) from embedded templates.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/diewo77/go-chantiers/auth"
	"github.com/diewo77/go-chantiers/i18n"
	"github.com/diewo77/go-chantiers/internal/ledger"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var files embed.FS

var (
	mu    sync.RWMutex
	cache = map[string]*template.Template{}

	langResolver = func(r *http.Request) string {
		return i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	}
	canResolver func(*http.Request, string, string) bool
)

// SetLangResolver lets the host app pick the language of a request.
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// SetCanResolver sets the callback behind the "can" template function.
func SetCanResolver(f func(r *http.Request, resource, action string) bool) {
	canResolver = f
}

// Funcs returns the request-bound template functions. A nil request binds
// the default language, as done once at parse time.
func Funcs(r *http.Request) template.FuncMap {
	lang := i18n.Default
	if r != nil {
		lang = langResolver(r)
	}
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"money": func(d decimal.Decimal) string { return ledger.FormatEUR(d) },
		"date":  func(t time.Time) string { return t.Format("02/01/2006") },
		"year":  func() int { return time.Now().Year() },
		"can": func(resource, action string) bool {
			if canResolver == nil || r == nil {
				return false
			}
			return canResolver(r, resource, action)
		},
		"dict": dict,
	}
}

// dict builds a map from alternating keys and values, for sub-templates.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

// base parses layout.html with the named page once. Functions are bound per
// request on a clone.
func base(name string) (*template.Template, error) {
	mu.RLock()
	t, ok := cache[name]
	mu.RUnlock()
	if ok {
		return t, nil
	}
	t, err := template.New("layout.html").
		Funcs(Funcs(nil)).
		ParseFS(files, "templates/layout.html", "templates/"+name)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	cache[name] = t
	mu.Unlock()
	return t, nil
}

// Render executes the page name inside the layout. data may be nil.
func Render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	t, err := base(name)
	if err != nil {
		return err
	}
	t, err = t.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(r))

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["IsLoggedIn"]; !ok {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return t.Execute(w, data)
}
