package fetcher

import (
	"fmt"
	"math/rand"
	"net/http"

	"github.com/go-rod/rod/lib/launcher"
)

// StealthConfig configures how the fetchers present themselves to the site.
type StealthConfig struct {
	// Viewport dimensions, also used as the launch window size.
	ViewportWidth  int
	ViewportHeight int

	// Language is the primary locale, e.g. "fr-FR".
	Language string

	// UserDataDir for a persistent browser profile.
	UserDataDir string
}

// DefaultStealthConfig returns a desktop profile with a French locale and a
// randomly picked common viewport.
func DefaultStealthConfig() *StealthConfig {
	viewports := []struct{ w, h int }{
		{1920, 1080}, {1366, 768}, {1536, 864},
		{1440, 900}, {1280, 720},
	}
	vp := viewports[rand.Intn(len(viewports))]

	return &StealthConfig{
		ViewportWidth:  vp.w,
		ViewportHeight: vp.h,
		Language:       "fr-FR",
	}
}

// WindowSize returns the value for chromium's --window-size flag.
func (sc *StealthConfig) WindowSize() string {
	return fmt.Sprintf("%d,%d", sc.ViewportWidth, sc.ViewportHeight)
}

// AcceptLanguage returns an Accept-Language header value for the locale.
func (sc *StealthConfig) AcceptLanguage() string {
	lang := sc.Language
	if lang == "" {
		lang = "fr-FR"
	}
	base := lang
	if len(lang) > 2 {
		base = lang[:2]
	}
	return fmt.Sprintf("%s,%s;q=0.9,en;q=0.8", lang, base)
}

// apply sets the launch flags for this profile.
func (sc *StealthConfig) apply(l *launcher.Launcher) *launcher.Launcher {
	l = l.Set("window-size", sc.WindowSize()).
		Set("lang", sc.Language)
	if sc.UserDataDir != "" {
		l = l.UserDataDir(sc.UserDataDir)
	}
	return l
}

// setBrowserHeaders fills in the navigation headers a desktop Chrome sends,
// leaving any header the caller already set untouched.
func setBrowserHeaders(h http.Header, acceptLanguage string) {
	defaults := [][2]string{
		{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		{"Accept-Language", acceptLanguage},
		{"Accept-Encoding", "gzip, deflate, br"},
		{"Upgrade-Insecure-Requests", "1"},
		{"Sec-Fetch-Dest", "document"},
		{"Sec-Fetch-Mode", "navigate"},
		{"Sec-Fetch-Site", "none"},
		{"Sec-Fetch-User", "?1"},
		{"Sec-Ch-Ua", `"Chromium";v="120", "Not?A_Brand";v="8", "Google Chrome";v="120"`},
		{"Sec-Ch-Ua-Mobile", "?0"},
		{"Sec-Ch-Ua-Platform", `"Windows"`},
	}
	for _, kv := range defaults {
		if h.Get(kv[0]) == "" {
			h.Set(kv[0], kv[1])
		}
	}
}
