package portal

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	cookiemonster "github.com/MercuryEngineering/CookieMonster"
)

const httpOnlyPrefix = "#HttpOnly_"

// ReadCookieFile parses a Netscape/Mozilla cookies.txt export, the format
// written by browser "export cookies" extensions and curl.
func ReadCookieFile(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cookies, err := parseCookies(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cookies, nil
}

// parseCookies accepts curl's "#HttpOnly_" line marker, which the plain
// format reads as a comment. An expiry of 0 marks a session cookie.
func parseCookies(data string) ([]*http.Cookie, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r", ""), "\n")
	httpOnly := make(map[string]bool)
	for i, line := range lines {
		if rest, ok := strings.CutPrefix(line, httpOnlyPrefix); ok {
			lines[i] = rest
			if f := strings.Split(rest, "\t"); len(f) == 7 {
				httpOnly[f[0]+"\t"+f[5]] = true
			}
		}
	}
	cookies, err := cookiemonster.ParseString(strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		c.HttpOnly = httpOnly[c.Domain+"\t"+c.Name]
		c.Domain = strings.TrimPrefix(c.Domain, ".")
		if !c.Expires.After(time.Unix(0, 0)) {
			c.Expires = time.Time{}
		}
	}
	return cookies, nil
}
