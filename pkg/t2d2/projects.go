package t2d2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

// GetProjects lists the projects visible to the session (project_list,
// total_projects).
func (c *Client) GetProjects(ctx context.Context) (Record, error) {
	return c.callDataRecord(ctx, http.MethodGet, "project", nil, nil)
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id int64) (Record, error) {
	return c.callDataRecord(ctx, http.MethodGet, fmt.Sprintf("project/%d", id), nil, nil)
}

// SetProject makes id the active project and records its storage settings.
// All project-scoped calls use the active project.
func (c *Client) SetProject(ctx context.Context, id int64) error {
	rec, err := c.callRecord(ctx, http.MethodGet, fmt.Sprintf("project/%d", id), nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !errors.Is(err, ErrNotFound) && apiErr.StatusCode < 300 {
			return fmt.Errorf("%w: project %d: %w", ErrNotFound, id, err)
		}
		return err
	}
	project := rec.Map("data")
	if project == nil {
		return fmt.Errorf("%w: project %d: response has no data", ErrNotFound, id)
	}
	if project.ID() == 0 {
		project = project.Clone()
		project["id"] = float64(id)
	}

	cfg := project.Map("config")
	baseURL := strings.TrimRight(cfg.String("s3_base_url"), "/")
	bucket := ""
	if baseURL != "" {
		if bucket, err = storage.BucketFromBaseURL(baseURL); err != nil {
			return fmt.Errorf("t2d2: project %d: %w", id, err)
		}
	}

	c.mu.Lock()
	c.project = project
	c.s3BaseURL = baseURL
	c.region = cfg.String("aws_region")
	c.bucket = bucket
	if c.ownStore {
		c.store = nil
		c.ownStore = false
	}
	c.mu.Unlock()

	c.logger.Debug("project set",
		zap.Int64("project_id", project.ID()),
		zap.String("bucket", bucket),
		zap.String("region", cfg.String("aws_region")),
	)
	return nil
}

// Project returns the active project record, or nil before SetProject.
func (c *Client) Project() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.project
}

// ProjectID returns the active project id, or ErrProjectNotSet.
func (c *Client) ProjectID() (int64, error) {
	return c.projectID()
}

// GetProjectInfo summarises the active project.
func (c *Client) GetProjectInfo() (ProjectInfo, error) {
	p := c.Project()
	if p == nil {
		return ProjectInfo{}, ErrProjectNotSet
	}
	info := ProjectInfo{
		ID:          p.ID(),
		Name:        p.Map("profile").String("name"),
		Address:     p.Map("location").String("address"),
		Description: p.String("description"),
		CreatedBy:   p.String("created_by"),
		Statistics:  p.Map("statistics"),
	}
	if ts := p.Int("created_at"); ts > 0 {
		info.CreatedAt = time.Unix(ts, 0).UTC()
	}
	if info.Statistics == nil {
		info.Statistics = Record{}
	}
	return info, nil
}

// NotifyUser sends a notification to the session user.
func (c *Client) NotifyUser(ctx context.Context, title, message string) (Record, error) {
	payload := map[string]string{"title": title, "message": message}
	return c.callRecord(ctx, http.MethodPost, "notifications", nil, payload)
}

// AddRegion creates a region in the active project.
func (c *Client) AddRegion(ctx context.Context, name string) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: region name is required", ErrInvalidArgument)
	}
	return c.callRecord(ctx, http.MethodPost, projectPath(pid, "categories/regions"), nil, map[string]string{"name": name})
}

// UpdateRegion replaces the region called name with update. The region is
// looked up in the project loaded by SetProject.
func (c *Client) UpdateRegion(ctx context.Context, name string, update Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	regionID := ""
	for _, region := range c.Project().Records("regions") {
		if region.String("name") == name {
			regionID = region.String("_id")
			break
		}
	}
	if regionID == "" {
		return nil, fmt.Errorf("%w: region %q", ErrNotFound, name)
	}
	return c.callRecord(ctx, http.MethodPut, projectPath(pid, "categories/regions/%s", regionID), nil, update)
}
