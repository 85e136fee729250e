package order

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// Attachment is a file sent alongside the design.
	Attachment struct {
		Name        string
		ContentType string
		Data        []byte
	}

	// Order is one multipart submission to the order service.
	Order struct {
		Path   string
		Fields []Field
		Design []byte
		Files  []Attachment
	}

	// Sender delivers an order.
	Sender interface {
		Send(ctx context.Context, o Order) error
	}

	// StatusError is returned when the order service answers outside 2xx.
	StatusError struct {
		Code int
		Body string
	}

	Client struct {
		BaseURL string
		HTTP    *http.Client
	}
)

func (e *StatusError) Error() string {
	return fmt.Sprintf("order service responded %d: %s", e.Code, e.Body)
}

// NewClient returns a client posting to baseURL with the given timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Encode writes o as a multipart form and returns its content type.
func Encode(w io.Writer, o Order) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range o.Fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return "", err
		}
	}
	if o.Design != nil {
		if err := writeFile(mw, "design_image", Attachment{Name: "design.png", ContentType: "image/png", Data: o.Design}); err != nil {
			return "", err
		}
	}
	for _, a := range o.Files {
		if err := writeFile(mw, "files", a); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

func writeFile(mw *multipart.Writer, field string, a Attachment) error {
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, escapeQuotes(a.Name)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(a.Data)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// Send posts o. Any 2xx response is success.
func (c *Client) Send(ctx context.Context, o Order) error {
	if c.BaseURL == "" {
		return ErrNoEndpoint
	}

	var body bytes.Buffer
	contentType, err := Encode(&body, o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+o.Path, &body)
	if err != nil {
		return fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	io.Copy(io.Discard, resp.Body)

	logrus.WithFields(logrus.Fields{
		"path":   o.Path,
		"status": resp.StatusCode,
		"files":  len(o.Files),
	}).Info("Order delivered successfully")
	return nil
}
