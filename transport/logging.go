package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"regexp"
)

// Long base64 runs (attachments, images) are shortened in dumps.
var base64Run = regexp.MustCompile(`[A-Za-z0-9+/=]{256,}`)

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	log.Printf(">>> %s %s %s", req.Method, req.URL, req.Proto)
	for k, v := range req.Header {
		log.Printf(">>> %s: %s", k, v)
	}

	if req.Body != nil {
		reqBody, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		log.Printf(">>> %s", dumpBody(reqBody))
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	log.Printf("<<< %s %s", resp.Proto, resp.Status)
	for k, v := range resp.Header {
		log.Printf("<<< %s: %s", k, v)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(respBody))
	log.Printf("<<< %s", dumpBody(respBody))

	return resp, nil
}

func dumpBody(body []byte) []byte {
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			body = pretty
		}
	}
	return base64Run.ReplaceAllFunc(body, func(run []byte) []byte {
		return append(run[:32:32], []byte("...")...)
	})
}
