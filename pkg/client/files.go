package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/papercomputeco/claudekit/pkg/retry"
)

// FilesBeta is the beta flag every Files API request carries.
const FilesBeta = "files-api-2025-04-14"

const endpointFiles = "/v1/files"

// ErrMissingFilename is returned by UploadFile without a file name.
var ErrMissingFilename = errors.New("file name is required")

// File is the metadata of an uploaded file.
type File struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	Downloadable bool      `json:"downloadable"`
}

// FilePage is one page of ListFiles.
type FilePage struct {
	Data    []File `json:"data"`
	HasMore bool   `json:"has_more"`
	FirstID string `json:"first_id"`
	LastID  string `json:"last_id"`
}

// ListFilesOptions pages through files, newest first. Zero values are
// omitted from the query.
type ListFilesOptions struct {
	Limit    int
	AfterID  string
	BeforeID string
}

func (o ListFilesOptions) query() string {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.AfterID != "" {
		q.Set("after_id", o.AfterID)
	}
	if o.BeforeID != "" {
		q.Set("before_id", o.BeforeID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// UploadFile uploads the contents of r under name. The part's media type
// comes from the name's extension, or is sniffed from the content. The
// whole body is buffered so the upload can be retried.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*File, error) {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, ErrMissingFilename
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(name))
	if mediaType == "" {
		mediaType = http.DetectContentType(content)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": name}))
	header.Set("Content-Type", mediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload := body.Bytes()
	resp, err := retry.Do(ctx, c.retryConfig(endpointFiles), func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, http.MethodPost, c.cfg.BaseURL+endpointFiles, endpointFiles, payload, false,
			withBeta(FilesBeta), withContentType(writer.FormDataContentType()))
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var file File
	if err := decodeJSON(resp.Body, &file); err != nil {
		return nil, err
	}

	c.logger.Info("file uploaded", "file_id", file.ID, "filename", name, "bytes", len(content))

	return &file, nil
}

// GetFile retrieves the metadata of a file.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	var file File
	if err := c.roundTrip(ctx, http.MethodGet, filePath(id), endpointFiles, nil, &file, withBeta(FilesBeta)); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListFiles returns one page of files.
func (c *Client) ListFiles(ctx context.Context, opts ListFilesOptions) (*FilePage, error) {
	var page FilePage
	if err := c.roundTrip(ctx, http.MethodGet, endpointFiles+opts.query(), endpointFiles, nil, &page, withBeta(FilesBeta)); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteFile deletes a file.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	var deleted struct {
		ID string `json:"id"`
	}
	if err := c.roundTrip(ctx, http.MethodDelete, filePath(id), endpointFiles, nil, &deleted, withBeta(FilesBeta)); err != nil {
		return err
	}

	c.logger.Info("file deleted", "file_id", id)

	return nil
}

// DownloadFile opens the content of a downloadable file, which only files
// created by tools are. The caller must close the returned body.
func (c *Client) DownloadFile(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := retry.Do(ctx, c.retryConfig(endpointFiles), func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, http.MethodGet, c.cfg.BaseURL+filePath(id)+"/content", endpointFiles, nil, false, withBeta(FilesBeta))
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func filePath(id string) string {
	return endpointFiles + "/" + url.PathEscape(id)
}
