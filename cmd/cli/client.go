package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/and161185/cloudbox/internal/convert"
	"github.com/and161185/cloudbox/internal/model"
)

const (
	kindNamespaces = "namespaces"
	kindShares     = "shares"
)

type upload struct {
	Name string
	Data []byte
}

// apiError is a non-2xx response.
type apiError struct {
	Status int
	Msg    string
}

func (e *apiError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Msg) }

type client struct {
	base string
	hc   *http.Client
}

func newClient(base string, hc *http.Client) *client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &client{base: strings.TrimRight(base, "/"), hc: hc}
}

func (c *client) url(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var e convert.Error
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return nil, &apiError{Status: resp.StatusCode, Msg: e.Error}
	}
	return resp, nil
}

func (c *client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) list(ctx context.Context, kind, token string) ([]string, error) {
	var l convert.Listing
	if err := c.getJSON(ctx, c.url(kind, token), &l); err != nil {
		return nil, err
	}
	return l.Entries, nil
}

func (c *client) get(ctx context.Context, kind, token, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(kind, token, name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *client) postFiles(ctx context.Context, u string, files []upload, v any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile("file", f.Name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) put(ctx context.Context, token, name string, data []byte) (convert.Stored, error) {
	var st convert.Stored
	err := c.postFiles(ctx, c.url(kindNamespaces, token), []upload{{Name: name, Data: data}}, &st)
	return st, err
}

func (c *client) share(ctx context.Context, files []upload) (model.Share, error) {
	var sh convert.Share
	if err := c.postFiles(ctx, c.url(kindShares), files, &sh); err != nil {
		return model.Share{}, err
	}
	return convert.FromShare(sh), nil
}
