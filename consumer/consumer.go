// Package consumer implements a read-only HTTP client for a zinc catalog
// service (spec §6 External Interfaces), checking the service's advertised
// API version before use.
package consumer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/index"
	"github.com/amrox/zinc/manifest"
	"github.com/amrox/zinc/zerr"
)

// APIVersionHeader is the response header a zinc service advertises its
// protocol version under.
const APIVersionHeader = "x-zinc-api-version"

// SupportedAPIVersion is the only API version this client understands.
const SupportedAPIVersion = "1.0"

// Consumer is a read-only client bound to one catalog's base URL.
type Consumer struct {
	BaseURL string
	HTTP    *http.Client
}

// Connect probes service for a supported zinc API version and returns a
// Consumer bound to it. It fails with Kind UsageError if the header is
// absent or names an unsupported version.
func Connect(service string) (*Consumer, error) {
	c := &Consumer{BaseURL: strings.TrimRight(service, "/"), HTTP: &http.Client{Timeout: 30 * time.Second}}

	resp, err := c.HTTP.Head(c.BaseURL + "/")
	if err != nil {
		return nil, zerr.New(zerr.UsageError, errors.Wrap(err, "could not reach zinc service"))
	}
	defer resp.Body.Close()

	version := resp.Header.Get(APIVersionHeader)
	if version == "" {
		return nil, zerr.Newf(zerr.UsageError, "%q header not found; is this a zinc service?", APIVersionHeader)
	}
	if version != SupportedAPIVersion {
		return nil, zerr.Newf(zerr.UsageError, "unsupported zinc API version %q", version)
	}

	return c, nil
}

// Index fetches and parses the catalog's index.
func (c *Consumer) Index(catalogID string) (*index.Index, error) {
	b, err := c.getBytes(fmt.Sprintf("/%s/index.json", catalogID))
	if err != nil {
		return nil, err
	}
	return index.Deserialize(b)
}

// Manifest fetches and parses the manifest for (bundle, version).
func (c *Consumer) Manifest(catalogID, bundle string, version int) (*manifest.Manifest, error) {
	b, err := c.getBytes(fmt.Sprintf("/%s/manifests/%s/%d.json", catalogID, bundle, version))
	if err != nil {
		return nil, err
	}
	return manifest.Deserialize(b)
}

func (c *Consumer) getBytes(subpath string) ([]byte, error) {
	resp, err := c.HTTP.Get(c.BaseURL + subpath)
	if err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, zerr.Newf(zerr.ManifestInvalid, "not found: %s", subpath)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, zerr.Newf(zerr.StorageError, "unexpected status %d fetching %s", resp.StatusCode, subpath)
	}

	var buf []byte
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode((*json.RawMessage)(&buf)); err != nil {
		return nil, zerr.New(zerr.ManifestInvalid, errors.Wrapf(err, "could not decode %s", subpath))
	}
	return buf, nil
}
