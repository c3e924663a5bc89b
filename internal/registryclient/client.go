// Package registryclient is the memflow-registry HTTP client used by the
// memflow-sign CLI's upload/download subcommands.
package registryclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/memflow/memflow-registry/internal/descriptor"
	"github.com/memflow/memflow-registry/internal/pluginuri"
)

// Client talks to one memflow-registry instance over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client with no request timeout, matching the teacher's
// OCI client's stance that large transfers should not be timed out wholesale.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 0}}
}

// Variants queries GET /plugins/{name} for uri's name, scoped to uri's
// registry base URL.
func (c *Client) Variants(uri pluginuri.URI) ([]descriptor.Variant, error) {
	url := fmt.Sprintf("%s/plugins/%s", strings.TrimSuffix(uri.Registry(), "/"), uri.Name())
	if uri.HasVersion() {
		url += "?version=" + uri.Version()
	}

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("query plugin variants: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("query plugin variants: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out struct {
		Plugins []descriptor.Variant `json:"plugins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode plugin variants: %w", err)
	}
	return out.Plugins, nil
}

// Download streams GET /files/{digest} to dst, reporting progress on a
// terminal bar sized to the response's Content-Length.
func (c *Client) Download(registry, digest string, dst io.Writer) error {
	url := fmt.Sprintf("%s/files/%s", strings.TrimSuffix(registry, "/"), digest)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", digest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download %s: %s: %s", digest, resp.Status, strings.TrimSpace(string(body)))
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, fmt.Sprintf("downloading %s", digest))
	defer bar.Close()

	_, err = io.Copy(io.MultiWriter(dst, bar), resp.Body)
	if err != nil {
		return fmt.Errorf("write downloaded bytes: %w", err)
	}
	return nil
}

// UploadResult mirrors the registry's {status: "Added"|"AlreadyExists"} body.
type UploadResult struct {
	Status string `json:"status"`
}

// Upload posts a signed binary to registry's POST /files, reporting progress
// on a terminal bar sized to the multipart body.
func (c *Client) Upload(registry string, fileBytes []byte, signatureHex string) (UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "plugin")
	if err != nil {
		return UploadResult{}, fmt.Errorf("build multipart file field: %w", err)
	}
	if _, err := fw.Write(fileBytes); err != nil {
		return UploadResult{}, fmt.Errorf("write multipart file field: %w", err)
	}
	if err := mw.WriteField("signature", signatureHex); err != nil {
		return UploadResult{}, fmt.Errorf("write multipart signature field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close multipart body: %w", err)
	}

	bar := progressbar.DefaultBytes(int64(body.Len()), "uploading")
	defer bar.Close()

	req, err := http.NewRequest(http.MethodPost, strings.TrimSuffix(registry, "/")+"/files", io.TeeReader(&body, bar))
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = int64(body.Len())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return UploadResult{}, fmt.Errorf("upload: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return UploadResult{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

// Delete issues DELETE /files/{digest} against registry, using bearerToken
// if non-empty.
func (c *Client) Delete(registry, digest, bearerToken string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/files/%s", strings.TrimSuffix(registry, "/"), digest), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", digest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete %s: %s: %s", digest, resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
