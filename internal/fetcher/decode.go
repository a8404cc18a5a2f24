package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

const supportedEncodings = "gzip, deflate, br"

var contentDecoders = map[string]func(io.Reader) (io.Reader, error){
	"gzip": func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	},
	"deflate": func(r io.Reader) (io.Reader, error) {
		return flate.NewReader(r), nil
	},
	"br": func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
}

// decodeBody undoes Content-Encoding and reads at most limit decoded bytes.
func decodeBody(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader = resp.Body
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if decode, ok := contentDecoders[encoding]; ok {
		decoded, err := decode(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", encoding, err)
		}
		if closer, ok := decoded.(io.Closer); ok {
			defer closer.Close()
		}
		reader = decoded
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", limit)
	}
	return body, nil
}
