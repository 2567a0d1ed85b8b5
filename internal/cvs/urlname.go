package cvs

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonWordRe    = regexp.MustCompile(`[^\w\-]+`)
	multiDashRe  = regexp.MustCompile(`\-\-+`)
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Routes and static pages that a custom URL name must never shadow.
var reservedURLNames = map[string]struct{}{
	"api":            {},
	"uploads":        {},
	"view-cv":        {},
	"cv-editor.html": {},
	"index.html":     {},
	"login.html":     {},
	"register.html":  {},
	"dashboard":      {},
	"success":        {},
	"pricing":        {},
}

// GenerateCustomURLName builds a shareable slug from a person's name with a
// random suffix for collision avoidance. An unusable name falls back to a
// fully random slug.
func GenerateCustomURLName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "cv-" + randomBase36(8)
	}

	urlName := strings.ToLower(name)
	urlName = whitespaceRe.ReplaceAllString(urlName, "-")
	urlName = nonWordRe.ReplaceAllString(urlName, "")
	urlName = multiDashRe.ReplaceAllString(urlName, "-")
	urlName = strings.Trim(urlName, "-")

	if len(urlName) < 2 {
		urlName = "cv"
	}
	return urlName + "-" + randomBase36(6)
}

// IsReservedURLName reports whether a slug would collide with an application
// route. Slugs containing a dot are also rejected since they look like files.
func IsReservedURLName(name string) bool {
	if strings.Contains(name, ".") {
		return true
	}
	_, reserved := reservedURLNames[name]
	return reserved
}

func randomBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}
