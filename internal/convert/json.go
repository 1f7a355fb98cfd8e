// Package convert maps domain values to the JSON bodies of the HTTP API.
package convert

import (
	"net/url"
	"strings"

	"github.com/and161185/cloudbox/internal/model"
)

// Listing is the body of GET /namespaces/{token} and GET /shares/{token}.
type Listing struct {
	Token   string   `json:"token"`
	Entries []string `json:"entries"`
}

// Stored acknowledges POST /namespaces/{token}.
type Stored struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
}

// Share is the body of POST /shares.
type Share struct {
	Token string   `json:"token"`
	Names []string `json:"names"`
	URL   string   `json:"url,omitempty"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// ToListing never emits a null entries array.
func ToListing(token string, names []string) Listing {
	if names == nil {
		names = []string{}
	}
	return Listing{Token: token, Entries: names}
}

// ToShare fills URL when publicURL is set.
func ToShare(s model.Share, publicURL string) Share {
	names := s.Names
	if names == nil {
		names = []string{}
	}
	return Share{Token: s.Token, Names: names, URL: ShareURL(publicURL, s.Token)}
}

// FromShare converts a decoded response back to the domain type.
func FromShare(s Share) model.Share {
	return model.Share{Token: s.Token, Names: s.Names}
}

// ShareURL joins the public base URL and the share path; "" when base is empty.
func ShareURL(publicURL, token string) string {
	if publicURL == "" || token == "" {
		return ""
	}
	return strings.TrimRight(publicURL, "/") + "/shares/" + url.PathEscape(token)
}

// EntryURL is the download location of one entry.
func EntryURL(publicURL, kind, token, name string) string {
	if publicURL == "" {
		return ""
	}
	return strings.TrimRight(publicURL, "/") + "/" + kind + "/" + url.PathEscape(token) + "/" + url.PathEscape(name)
}
