package t2d2

import (
	"context"
	"fmt"
	"net/http"
)

// mediaKind describes one of the uploadable asset collections.
type mediaKind struct {
	path    string
	listKey string
	idsKey  string
	folder  string
	asset   AssetType
}

var (
	imagesKind   = mediaKind{path: "images", listKey: "image_list", idsKey: "image_ids", folder: "images", asset: AssetImage}
	drawingsKind = mediaKind{path: "drawings", listKey: "drawing_list", idsKey: "drawing_ids", folder: "drawings", asset: AssetDrawing}
	// Videos share the drawings folder in project storage.
	videosKind  = mediaKind{path: "videos", listKey: "video_list", idsKey: "video_ids", folder: "drawings", asset: AssetVideo}
	threeDKind  = mediaKind{path: "3d-models", listKey: "model_list", idsKey: "model_ids", folder: "3d_models", asset: AssetThreeD}
	reportsKind = mediaKind{path: "reports", idsKey: "report_ids", folder: "reports", asset: AssetReport}
)

func (c *Client) upload(ctx context.Context, k mediaKind, folder string, paths []string, extra Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	files, err := statFiles(paths)
	if err != nil {
		return nil, err
	}
	assets, err := c.uploadAssets(ctx, pid, folder, files)
	if err != nil {
		return nil, err
	}
	payload := Record{"project_id": pid, "asset_type": k.asset, "assets": assets}
	for key, v := range extra {
		payload[key] = v
	}
	return c.AddAssets(ctx, payload)
}

// list returns every record of kind k when ids is nil, or one GET per id.
func (c *Client) list(ctx context.Context, k mediaKind, ids []int64, params Params) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		data, err := c.callDataRecord(ctx, http.MethodGet, projectPath(pid, "%s", k.path), params, nil)
		if err != nil {
			return nil, err
		}
		return data.Records(k.listKey), nil
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := c.callDataRecord(ctx, http.MethodGet, projectPath(pid, "%s/%d", k.path, id), params, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) bulkUpdate(ctx context.Context, k mediaKind, ids []int64, update Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no %s given", ErrInvalidArgument, k.idsKey)
	}
	payload := update.Clone()
	payload[k.idsKey] = ids
	payload["project_id"] = pid
	return c.callRecord(ctx, http.MethodPut, projectPath(pid, "%s/bulk.update", k.path), nil, payload)
}

func (c *Client) bulkDelete(ctx context.Context, k mediaKind, ids []int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no %s given", ErrInvalidArgument, k.idsKey)
	}
	return c.callRecord(ctx, http.MethodDelete, projectPath(pid, "%s/bulk.delete", k.path), nil, Record{k.idsKey: ids})
}

// UploadImages stores image files and registers them with the project. A nil
// opts uploads regular images.
func (c *Client) UploadImages(ctx context.Context, paths []string, opts *UploadOptions) (Record, error) {
	imageType := 1
	var params Record
	if opts != nil {
		if opts.ImageType != 0 {
			imageType = opts.ImageType
		}
		params = opts.Params
	}
	folder := imagesKind.folder
	if imageType == ImageTypeOrthomosaic {
		folder = "orthomosaics"
	}
	extra := Record{"image_type": imageType}
	for k, v := range params {
		extra[k] = v
	}
	return c.upload(ctx, imagesKind, folder, paths, extra)
}

// GetImages returns all project images when ids is nil, otherwise the listed
// images.
func (c *Client) GetImages(ctx context.Context, ids []int64, params Params) ([]Record, error) {
	return c.list(ctx, imagesKind, ids, params)
}

// UpdateImages applies update to the listed images.
func (c *Client) UpdateImages(ctx context.Context, ids []int64, update Record) (Record, error) {
	return c.bulkUpdate(ctx, imagesKind, ids, update)
}

// DeleteImages removes the listed images.
func (c *Client) DeleteImages(ctx context.Context, ids []int64) (Record, error) {
	return c.bulkDelete(ctx, imagesKind, ids)
}

// UploadDrawings stores drawing files and registers them with the project.
func (c *Client) UploadDrawings(ctx context.Context, paths []string) (Record, error) {
	return c.upload(ctx, drawingsKind, drawingsKind.folder, paths, nil)
}

// GetDrawings returns all drawings when ids is nil, otherwise the listed ones.
func (c *Client) GetDrawings(ctx context.Context, ids []int64, params Params) ([]Record, error) {
	return c.list(ctx, drawingsKind, ids, params)
}

// UpdateDrawings applies update to the listed drawings.
func (c *Client) UpdateDrawings(ctx context.Context, ids []int64, update Record) (Record, error) {
	return c.bulkUpdate(ctx, drawingsKind, ids, update)
}

// DeleteDrawings removes the listed drawings.
func (c *Client) DeleteDrawings(ctx context.Context, ids []int64) (Record, error) {
	return c.bulkDelete(ctx, drawingsKind, ids)
}

// UploadVideos stores video files and registers them with the project.
func (c *Client) UploadVideos(ctx context.Context, paths []string) (Record, error) {
	return c.upload(ctx, videosKind, videosKind.folder, paths, nil)
}

// GetVideos returns all videos when ids is nil, otherwise the listed ones.
func (c *Client) GetVideos(ctx context.Context, ids []int64, params Params) ([]Record, error) {
	return c.list(ctx, videosKind, ids, params)
}

// UpdateVideos applies update to the listed videos.
func (c *Client) UpdateVideos(ctx context.Context, ids []int64, update Record) (Record, error) {
	return c.bulkUpdate(ctx, videosKind, ids, update)
}

// DeleteVideos removes the listed videos.
func (c *Client) DeleteVideos(ctx context.Context, ids []int64) (Record, error) {
	return c.bulkDelete(ctx, videosKind, ids)
}

// UploadThreeD stores 3D model files and registers them with the project.
func (c *Client) UploadThreeD(ctx context.Context, paths []string) (Record, error) {
	return c.upload(ctx, threeDKind, threeDKind.folder, paths, nil)
}

// GetThreeD returns all 3D models when ids is nil, otherwise the listed ones.
func (c *Client) GetThreeD(ctx context.Context, ids []int64, params Params) ([]Record, error) {
	return c.list(ctx, threeDKind, ids, params)
}

// UpdateThreeD applies update to the listed 3D models.
func (c *Client) UpdateThreeD(ctx context.Context, ids []int64, update Record) (Record, error) {
	return c.bulkUpdate(ctx, threeDKind, ids, update)
}

// DeleteThreeD removes the listed 3D models.
func (c *Client) DeleteThreeD(ctx context.Context, ids []int64) (Record, error) {
	return c.bulkDelete(ctx, threeDKind, ids)
}

// UploadReports stores report files and registers them with the project.
func (c *Client) UploadReports(ctx context.Context, paths []string) (Record, error) {
	return c.upload(ctx, reportsKind, reportsKind.folder, paths, nil)
}

// GetReports returns the listed reports. Reports have no list endpoint, so a
// nil ids yields an empty result.
func (c *Client) GetReports(ctx context.Context, ids []int64, params Params) ([]Record, error) {
	if _, err := c.projectID(); err != nil {
		return nil, err
	}
	if ids == nil {
		return []Record{}, nil
	}
	return c.list(ctx, reportsKind, ids, params)
}

// UpdateReports applies update to the listed reports.
func (c *Client) UpdateReports(ctx context.Context, ids []int64, update Record) (Record, error) {
	return c.bulkUpdate(ctx, reportsKind, ids, update)
}

// DeleteReports removes the listed reports.
func (c *Client) DeleteReports(ctx context.Context, ids []int64) (Record, error) {
	return c.bulkDelete(ctx, reportsKind, ids)
}
