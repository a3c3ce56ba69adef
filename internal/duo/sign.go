package duo

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// signRequest builds the Duo Admin API v1 authorization headers for one
// request. The signature is an HMAC-SHA1 over the canonical string
//
//	{date}\n{METHOD}\n{host}\n{path}\n{params}
//
// where params is the sorted, URL-encoded query string for GET/DELETE and
// empty for everything else (POST parameters travel in the body and are
// not part of the canonical string). The hex digest is combined with the
// integration key into a Basic authorization header.
func signRequest(method, path, host, ikey, skey string, params url.Values, now time.Time) (string, map[string]string) {
	date := now.Format("Mon, 02 Jan 2006 15:04:05 -0700")

	canon := []string{
		date,
		strings.ToUpper(method),
		strings.ToLower(host),
		path,
		"",
	}
	if len(params) > 0 && signsParams(method) {
		canon[4] = canonParams(params)
	}

	mac := hmac.New(sha1.New, []byte(skey))
	mac.Write([]byte(strings.Join(canon, "\n")))
	sig := hex.EncodeToString(mac.Sum(nil))

	auth := base64.StdEncoding.EncodeToString([]byte(ikey + ":" + sig))

	headers := map[string]string{
		"Date":          date,
		"Authorization": fmt.Sprintf("Basic %s", auth),
		"Host":          host,
		"Content-Type":  "application/x-www-form-urlencoded",
	}
	return date, headers
}

func signsParams(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "DELETE":
		return true
	}
	return false
}

// canonParams encodes params sorted lexicographically by key. url.Values
// may hold several values per key; each pair is emitted in order.
func canonParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range params[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
