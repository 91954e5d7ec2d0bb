package t2d2

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// GetDatasets lists the project's datasets (dataset_list, total_datasets).
func (c *Client) GetDatasets(ctx context.Context, params Params) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	return c.callDataRecord(ctx, http.MethodGet, projectPath(pid, "datasets"), params, nil)
}

// CreateDataset creates an empty, private dataset and returns it.
func (c *Client) CreateDataset(ctx context.Context, name string) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: dataset name is required", ErrInvalidArgument)
	}
	return c.callDataRecord(ctx, http.MethodPost, projectPath(pid, "datasets"), nil, Record{"name": name})
}

// DeleteDatasets removes datasets by id.
func (c *Client) DeleteDatasets(ctx context.Context, ids ...int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no dataset ids given", ErrInvalidArgument)
	}
	return c.callRecord(ctx, http.MethodDelete, projectPath(pid, "datasets/bulk.delete"), nil, Record{"dataset_ids": ids})
}

// UpdateDatasetImages adds images to or removes images from a dataset and
// returns the updated dataset.
func (c *Client) UpdateDatasetImages(ctx context.Context, datasetID int64, action DatasetAction, imageIDs []int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if action != DatasetAdd && action != DatasetRemove {
		return nil, fmt.Errorf("%w: action must be either %q or %q", ErrInvalidArgument, DatasetAdd, DatasetRemove)
	}
	if len(imageIDs) == 0 {
		return nil, fmt.Errorf("%w: no image ids given", ErrInvalidArgument)
	}
	payload := Record{"action": action, "image_ids": imageIDs}
	return c.callDataRecord(ctx, http.MethodPut, projectPath(pid, "datasets/%d/images", datasetID), nil, payload)
}
