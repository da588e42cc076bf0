// Package payload encodes the records posted in the 3DS sub-flow fields
// (threeDSMethodData, creq) as unpadded URL-safe base64 JSON.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/jrsteele09/go-threedsecure/internal/errors"
)

var urlSafe = strings.NewReplacer("+", "-", "/", "_")

// Encode serializes v to JSON, applies standard base64, strips the padding
// and swaps '+' and '/' for '-' and '_'. HTML characters are left unescaped
// so URLs in the record keep their literal '&'.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrapf(err, "[payload.Encode] json encode")
	}
	encoded := base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return urlSafe.Replace(strings.TrimRight(encoded, "=")), nil
}

// Decode reverses Encode into v. Padded input and standard alphabet input are accepted.
func Decode(s string, v any) error {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	raw, err := base64.RawURLEncoding.DecodeString(urlSafe.Replace(s))
	if err != nil {
		return errors.Wrapf(err, "[payload.Decode] base64")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrapf(err, "[payload.Decode] json.Unmarshal")
	}
	return nil
}
