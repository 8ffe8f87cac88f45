package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

const maxMediaBytes = 15 << 20

// WordPress publishes drafts through the WordPress REST API using an
// application password.
type WordPress struct {
	baseURL  string
	username string
	password string
	status   string
	client   *http.Client
}

var _ ports.PrimaryChannel = (*WordPress)(nil)

func NewWordPress(cfg config.CMSConfig, client *http.Client) *WordPress {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	status := cfg.Status
	if status == "" {
		status = "publish"
	}
	return &WordPress{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		status:   status,
		client:   client,
	}
}

func (w *WordPress) Name() string {
	return "cms"
}

type wpPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt,omitempty"`
	Status  string `json:"status"`
	Slug    string `json:"slug,omitempty"`
}

type wpCreated struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

// Publish creates the post and returns its permalink and numeric id.
func (w *WordPress) Publish(ctx context.Context, req ports.PublishRequest) (ports.PublishResult, error) {
	if w.baseURL == "" {
		return ports.PublishResult{}, fmt.Errorf("cms base url is not configured")
	}

	d := req.Draft
	title := d.Title
	if d.SEOTitle != "" {
		title = d.SEOTitle
	}
	excerpt := d.SEODescription
	if excerpt == "" {
		excerpt = d.Lead
	}

	var created wpCreated
	err := w.postJSON(ctx, "/wp-json/wp/v2/posts", wpPost{
		Title:   title,
		Content: renderContent(d.Lead, d.Body, req.CanonicalURL),
		Excerpt: excerpt,
		Status:  w.status,
		Slug:    d.Slug,
	}, &created)
	if err != nil {
		return ports.PublishResult{}, fmt.Errorf("create post: %w", err)
	}

	return ports.PublishResult{URL: created.Link, RemoteID: strconv.FormatInt(created.ID, 10)}, nil
}

// SetFeaturedMedia downloads the image, uploads it to the media library and
// attaches it to the post.
func (w *WordPress) SetFeaturedMedia(ctx context.Context, remoteID, mediaURL string) error {
	if remoteID == "" || mediaURL == "" {
		return nil
	}

	data, contentType, err := w.download(ctx, mediaURL)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/wp-json/wp/v2/media", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, mediaFilename(mediaURL)))

	var media wpCreated
	if err := w.do(req, &media); err != nil {
		return fmt.Errorf("upload media: %w", err)
	}

	update := map[string]int64{"featured_media": media.ID}
	if err := w.postJSON(ctx, "/wp-json/wp/v2/posts/"+url.PathEscape(remoteID), update, nil); err != nil {
		return fmt.Errorf("attach media: %w", err)
	}
	return nil
}

func (w *WordPress) postJSON(ctx context.Context, endpoint string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return w.do(req, v)
}

func (w *WordPress) do(req *http.Request, v any) error {
	if w.username != "" {
		req.SetBasicAuth(w.username, w.password)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("cms error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (w *WordPress) download(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// renderContent turns plain paragraphs into post HTML with a source line.
func renderContent(lead, body, sourceURL string) string {
	var b strings.Builder
	if lead != "" {
		b.WriteString("<p><strong>" + html.EscapeString(lead) + "</strong></p>\n")
	}
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>" + html.EscapeString(para) + "</p>\n")
	}
	if sourceURL != "" {
		escaped := html.EscapeString(sourceURL)
		b.WriteString(`<p class="source">Quelle: <a href="` + escaped + `" rel="nofollow">` + escaped + "</a></p>\n")
	}
	return b.String()
}

func mediaFilename(mediaURL string) string {
	if parsed, err := url.Parse(mediaURL); err == nil {
		if name := path.Base(parsed.Path); name != "." && name != "/" && name != "" {
			return name
		}
	}
	return "featured.jpg"
}
