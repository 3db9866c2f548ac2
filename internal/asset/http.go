package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Encoding selects how HTTPPublisher sends the file body.
type Encoding string

const (
	// EncodingRaw sends the bytes as a multipart file part.
	EncodingRaw Encoding = "raw"
	// EncodingBase64 sends a data: URI in the "file" form field, as hosted
	// media APIs such as Cloudinary accept.
	EncodingBase64 Encoding = "base64"
)

// HTTPConfig configures an HTTPPublisher.
type HTTPConfig struct {
	// UploadURL receives a multipart/form-data POST.
	UploadURL string
	// Token is sent as a bearer credential. Opaque to this package.
	Token    string
	Encoding Encoding
	// Folder is forwarded as the "folder" form field when set.
	Folder string
}

// HTTPPublisher uploads to a generic HTTP asset endpoint that answers with
// JSON containing "secure_url" or "url".
type HTTPPublisher struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPPublisher returns an HTTPPublisher. The client timeout is a backstop;
// callers are expected to bound each Publish with a context deadline.
func NewHTTPPublisher(cfg HTTPConfig) *HTTPPublisher {
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingRaw
	}
	return &HTTPPublisher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Publish posts u and returns the URL from the response body.
func (p *HTTPPublisher) Publish(ctx context.Context, u Upload) (string, error) {
	if p.cfg.UploadURL == "" {
		return "", &UploadError{Op: "http upload", Err: errors.New("upload url not configured")}
	}

	body, contentType, err := p.form(u)
	if err != nil {
		return "", &UploadError{Op: "http upload: build form", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.UploadURL, body)
	if err != nil {
		return "", &UploadError{Op: "http upload: build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Op: "http upload", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", &UploadError{Op: "http upload: read response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{
			Op:         "http upload",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("rejected: %.200s", string(respBytes)),
		}
	}

	var parsed uploadResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", &UploadError{Op: "http upload: decode response", StatusCode: resp.StatusCode, Err: err}
	}
	if parsed.Error != nil {
		return "", &UploadError{Op: "http upload", StatusCode: resp.StatusCode, Err: errors.New(parsed.Error.Message)}
	}

	link := parsed.SecureURL
	if link == "" {
		link = parsed.URL
	}
	if link == "" {
		return "", &UploadError{Op: "http upload", StatusCode: resp.StatusCode, Err: errors.New("response has no url")}
	}
	return link, nil
}

func (p *HTTPPublisher) form(u Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if p.cfg.Folder != "" {
		if err := w.WriteField("folder", p.cfg.Folder); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("filename", u.Filename); err != nil {
		return nil, "", err
	}

	switch p.cfg.Encoding {
	case EncodingBase64:
		contentType := u.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		if err := w.WriteField("file", "data:"+contentType+";base64,"+u.Base64); err != nil {
			return nil, "", err
		}
	default:
		part, err := w.CreateFormFile("file", u.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(u.Body); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
