package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// maxErrorBodyBytes caps how much of an error response body is included in
// error messages.
const maxErrorBodyBytes = 512

// Client talks to the incident backend. It is stateless apart from the
// underlying HTTP client; one Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client for the given base URL. A non-empty token is
// attached to every request as a bearer credential via an oauth2 transport;
// an empty token leaves requests unauthenticated (local development
// backends). base must not end with a slash.
func NewClient(base, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	base = strings.TrimRight(base, "/")

	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Timeout: httpClient.Timeout,
			Transport: &oauth2.Transport{
				Source: src,
				Base:   httpClient.Transport,
			},
		}
	}

	return &Client{baseURL: base, http: httpClient, logger: logger}
}

// CreateOccurrence uploads one incident as multipart form data: a JSON
// metadata part named "incident" plus optional photo and video file parts.
// Returns the remote identifier assigned by the backend.
//
// A client-side error (unreachable host, timeout) and a non-2xx response
// are both returned as ordinary errors; the sync worker treats either as a
// per-record failure and leaves the record pending.
func (c *Client) CreateOccurrence(ctx context.Context, req *NewIncidentRequest, photoPath, videoPath string) (int64, error) {
	c.logger.Debug("creating occurrence",
		slog.String("client_key", req.ClientKey),
		slog.Bool("has_photo", photoPath != ""),
		slog.Bool("has_video", videoPath != ""),
	)

	body, contentType, err := buildCreateBody(req, photoPath, videoPath)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/incidents", body)
	if err != nil {
		return 0, fmt.Errorf("api: building create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("api: create occurrence: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, httpError("create occurrence", resp)
	}

	var created IncidentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("api: decoding create response: %w", err)
	}

	if created.ID == 0 {
		return 0, fmt.Errorf("api: create occurrence: backend returned no id")
	}

	c.logger.Debug("occurrence created", slog.Int64("remote_id", created.ID))

	return created.ID, nil
}

// buildCreateBody assembles the multipart body for CreateOccurrence.
// Media parts are attached by reference only when the path is non-empty.
func buildCreateBody(req *NewIncidentRequest, photoPath, videoPath string) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	meta, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("api: marshaling incident metadata: %w", err)
	}

	if err := w.WriteField("incident", string(meta)); err != nil {
		return nil, "", fmt.Errorf("api: writing incident part: %w", err)
	}

	if photoPath != "" {
		if err := attachFile(w, "photo", photoPath); err != nil {
			return nil, "", err
		}
	}

	if videoPath != "" {
		if err := attachFile(w, "video", videoPath); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api: finalizing multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// attachFile streams a local file into a named multipart part.
func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("api: opening %s file %s: %w", field, path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("api: creating %s part: %w", field, err)
	}

	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("api: copying %s file: %w", field, err)
	}

	return nil
}

// ListIncidents returns all incidents visible to the authenticated user.
func (c *Client) ListIncidents(ctx context.Context) ([]IncidentResponse, error) {
	return c.getIncidents(ctx, "/incidents")
}

// ListUserIncidents returns the incidents created by the given user.
func (c *Client) ListUserIncidents(ctx context.Context, userID int64) ([]IncidentResponse, error) {
	return c.getIncidents(ctx, fmt.Sprintf("/incidents/user/%d", userID))
}

func (c *Client) getIncidents(ctx context.Context, path string) ([]IncidentResponse, error) {
	c.logger.Debug("listing incidents", slog.String("path", path))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("api: building list request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api: list incidents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError("list incidents", resp)
	}

	var incidents []IncidentResponse
	if err := json.NewDecoder(resp.Body).Decode(&incidents); err != nil {
		return nil, fmt.Errorf("api: decoding incident list: %w", err)
	}

	return incidents, nil
}

// GetIncident fetches a single incident by remote identifier.
// Returns (nil, nil) when the backend reports 404.
func (c *Client) GetIncident(ctx context.Context, id int64) (*IncidentResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/incidents/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("api: building get request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api: get incident %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpError("get incident", resp)
	}

	var incident IncidentResponse
	if err := json.NewDecoder(resp.Body).Decode(&incident); err != nil {
		return nil, fmt.Errorf("api: decoding incident: %w", err)
	}

	return &incident, nil
}

// httpError builds an error from a non-success response, including a
// truncated body snippet for diagnosis.
func httpError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	return fmt.Errorf("api: %s: HTTP %d: %s", op, resp.StatusCode,
		strings.TrimSpace(string(snippet)))
}
