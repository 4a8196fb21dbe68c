package httpapi

import (
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func refreshCookie(cfg goIdentity.CookieConfig, value string) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.Name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.EffectiveSameSite(),
	}
}

func setRefreshCookie(w http.ResponseWriter, cfg goIdentity.CookieConfig, token string) {
	http.SetCookie(w, refreshCookie(cfg, token))
}

func clearRefreshCookie(w http.ResponseWriter, cfg goIdentity.CookieConfig) {
	c := refreshCookie(cfg, "")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func readRefreshCookie(r *http.Request, cfg goIdentity.CookieConfig) (string, bool) {
	c, err := r.Cookie(cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
