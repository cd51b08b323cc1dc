package owa

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var (
	// RFC 5987 extended filename, e.g. filename*=UTF-8''report%20Q3.pdf
	dispositionExtRe = regexp.MustCompile(`(?i)filename\*=utf-8''(.+?)(?:;|$)`)
	dispositionRe    = regexp.MustCompile(`filename="?([^";]+)"?`)
)

// Attachment is a downloaded file attachment.
type Attachment struct {
	Content     []byte
	Filename    string
	ContentType string
}

// DownloadAttachment fetches a file attachment by its AttachmentId via
// the GetFileAttachment endpoint. Unlike the JSON API calls this is a
// direct GET with the canary in the query string, and it does not retry
// on expiry.
func (c *Client) DownloadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}

	canary, cookieHeader := c.sessionHeaders()
	reqURL := c.baseURL + servicePath + "/s/GetFileAttachment" +
		"?id=" + url.QueryEscape(attachmentID) +
		"&X-OWA-CANARY=" + url.QueryEscape(canary)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}

	httpClient := &http.Client{Timeout: downloadTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &SessionExpiredError{Reason: "download failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == statusLoginTimeout {
		return nil, &SessionExpiredError{Status: resp.StatusCode}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, &SessionExpiredError{Reason: "HTML response on attachment download", Status: resp.StatusCode}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Attachment{
		Content:     content,
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
	}, nil
}

// dispositionFilename extracts the attachment filename from a
// Content-Disposition header, preferring the RFC 5987 filename*= form
// over the plain filename= form. Falls back to "attachment".
func dispositionFilename(disposition string) string {
	if disposition == "" {
		return "attachment"
	}
	if m := dispositionExtRe.FindStringSubmatch(disposition); m != nil {
		if name, err := url.PathUnescape(strings.TrimSpace(m[1])); err == nil && name != "" {
			return name
		}
	}
	if m := dispositionRe.FindStringSubmatch(disposition); m != nil {
		if name, err := url.PathUnescape(strings.TrimSpace(m[1])); err == nil && name != "" {
			return name
		}
		return strings.TrimSpace(m[1])
	}
	return "attachment"
}
