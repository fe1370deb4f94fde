package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"pkt.systems/joblog/schema"
)

const prefCookieMaxAge = 365 * 24 * time.Hour

// cookieBackend persists the display preferences of one browser in
// cookies named after the keys, holding "true" or "false".
type cookieBackend struct {
	r    *http.Request
	w    http.ResponseWriter
	path string
}

func newCookieBackend(w http.ResponseWriter, r *http.Request, path string) *cookieBackend {
	if path == "" {
		path = "/"
	}
	return &cookieBackend{r: r, w: w, path: path}
}

// Load implements displaystate.Backend. Cookies with other values are ignored.
func (c *cookieBackend) Load() (map[schema.DisplayKey]bool, error) {
	values := make(map[schema.DisplayKey]bool, len(schema.PersistedDisplayKeys))
	for _, key := range schema.PersistedDisplayKeys {
		cookie, err := c.r.Cookie(string(key))
		if err != nil {
			continue
		}
		value, err := strconv.ParseBool(cookie.Value)
		if err != nil || (cookie.Value != "true" && cookie.Value != "false") {
			continue
		}
		values[key] = value
	}
	return values, nil
}

// Save implements displaystate.Backend.
func (c *cookieBackend) Save(values map[schema.DisplayKey]bool) error {
	if c.w == nil {
		return nil
	}
	expires := time.Now().Add(prefCookieMaxAge)
	for _, key := range schema.PersistedDisplayKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		http.SetCookie(c.w, &http.Cookie{
			Name:     string(key),
			Value:    strconv.FormatBool(value),
			Path:     c.path,
			Expires:  expires,
			MaxAge:   int(prefCookieMaxAge / time.Second),
			SameSite: http.SameSiteLaxMode,
		})
	}
	return nil
}
