package httpmiddleware

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/jx"
)

// maxTokenBody bounds how much of a request body is buffered to look for a
// token field.
const maxTokenBody = 1 << 20

// StaticToken authorizes requests carrying the shared secret in the api_key
// header, an "Authorization: Bearer" header, or a top-level "token" field of
// a JSON body. Other requests get 401.
func StaticToken(secret string) Middleware {
	want := sha256.Sum256([]byte(secret))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := requestToken(r)
			if err != nil {
				WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			got := sha256.Sum256([]byte(token))
			if token == "" || subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				WriteError(w, http.StatusUnauthorized, "Invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken extracts the token from headers or the body. The body is
// restored so handlers can read it again.
func requestToken(r *http.Request) (string, error) {
	if v := r.Header.Get("api_key"); v != "" {
		return v, nil
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v), nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTokenBody+1))
	_ = r.Body.Close()
	if err != nil {
		return "", err
	}
	if len(body) > maxTokenBody {
		return "", errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return bodyToken(body), nil
}

var errBodyTooLarge = &http.MaxBytesError{Limit: maxTokenBody}

// bodyToken returns the "token" string field of a JSON object, or "".
func bodyToken(body []byte) string {
	var token string
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return ""
	}
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "token" || d.Next() != jx.String {
			return d.Skip()
		}
		s, err := d.Str()
		token = s
		return err
	})
	return token
}
