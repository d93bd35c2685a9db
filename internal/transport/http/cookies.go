package httptransport

import (
	"net/http"
	"time"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"

	// renewedAccessHeader carries a silently renewed access assertion to
	// clients that read the Authorization header instead of cookies.
	renewedAccessHeader = "X-Renewed-Access-Token"
	refreshHeader       = "X-Refresh-Token"
)

// CookieConfig controls how session cookies are issued.
type CookieConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

func (c CookieConfig) setAccess(w http.ResponseWriter, value string) {
	c.set(w, accessCookie, value, c.AccessTTL)
}

func (c CookieConfig) setRefresh(w http.ResponseWriter, value string) {
	c.set(w, refreshCookie, value, c.RefreshTTL)
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clear expires both session cookies (logout and terminal auth failures).
func (c CookieConfig) clear(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
