package sessions

import "net/http"

// hostPrefix pins a cookie to the exact host, root path and a secure channel.
const hostPrefix = "__Host-"

// CookieName returns the name a cookie is issued under. Outside testing mode
// cookies carry the __Host- prefix, which browsers only accept over https.
func CookieName(name string, testingMode bool) string {
	if testingMode {
		return name
	}
	return hostPrefix + name
}

// NewCookie builds an http-only, root path, SameSite=Lax cookie.
func NewCookie(name, value string, maxAge int, testingMode bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName(name, testingMode),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !testingMode,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// ExpiredCookie builds a cookie that deletes name in the browser.
func ExpiredCookie(name string, testingMode bool) *http.Cookie {
	return NewCookie(name, "", -1, testingMode)
}
