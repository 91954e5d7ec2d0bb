package t2d2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// GetTags lists the project's tags.
func (c *Client) GetTags(ctx context.Context, params Params) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	return c.callDataList(ctx, http.MethodGet, projectPath(pid, "tags"), params, nil)
}

// AddTags creates one tag per name. Names the server rejects (typically tags
// that already exist) are logged and skipped; transport failures abort.
func (c *Client) AddTags(ctx context.Context, names ...string) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	path := projectPath(pid, "tags")
	results := make([]Record, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rec, err := c.callRecord(ctx, http.MethodPost, path, nil, map[string]string{"name": name})
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				c.logger.Warn("tag not created", zap.String("tag", name), zap.Error(err))
				continue
			}
			return results, err
		}
		results = append(results, rec)
	}
	return results, nil
}

// GetMaterials lists the materials defined for the project.
func (c *Client) GetMaterials(ctx context.Context) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	return c.callDataList(ctx, http.MethodGet, "material", Params{"project_id": pid}, nil)
}

// GetAnnotationClasses returns the project's classes (label_list and paging
// fields). params override the default scope and ordering.
func (c *Client) GetAnnotationClasses(ctx context.Context, params Params) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	base := Params{"project_id": pid, "scope": "DEFAULT", "sortBy": "id:asc"}
	return c.callDataRecord(ctx, http.MethodGet, "annotation-class", mergeParams(base, params), nil)
}

// AddAnnotationClass creates a class. An empty Color gets a random one.
func (c *Client) AddAnnotationClass(ctx context.Context, class AnnotationClass) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(class); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	color := class.Color
	if color == "" {
		color = randomColor()
	}
	materials := class.Materials
	if materials == nil {
		materials = []string{}
	}
	payload := Record{
		"project_id": pid,
		"name":       class.Name,
		"materials":  materials,
		"color":      color,
	}
	return c.callRecord(ctx, http.MethodPost, "annotation-class/create-annotation-class", nil, payload)
}

// DeleteAnnotationClasses removes classes by id.
func (c *Client) DeleteAnnotationClasses(ctx context.Context, ids ...int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no annotation class ids provided", ErrInvalidArgument)
	}
	payload := Record{"annotation_class_ids": ids}
	return c.callRecord(ctx, http.MethodDelete, projectPath(pid, "annotation-class/bulk.delete"), nil, payload)
}

// GetAnnotations returns the annotations of one image, or of every image in
// the project when imageID is nil.
func (c *Client) GetAnnotations(ctx context.Context, imageID *int64, params Params) ([]Record, error) {
	if _, err := c.projectID(); err != nil {
		return nil, err
	}
	var ids []int64
	if imageID != nil {
		ids = []int64{*imageID}
	} else {
		images, err := c.GetImages(ctx, nil, params)
		if err != nil {
			return nil, err
		}
		ids = make([]int64, 0, len(images))
		for _, img := range images {
			ids = append(ids, img.ID())
		}
	}

	images, err := c.GetImages(ctx, ids, params)
	if err != nil {
		return nil, err
	}
	annotations := make([]Record, 0)
	for _, img := range images {
		annotations = append(annotations, img.Records("annotations")...)
	}
	return annotations, nil
}

// AddAnnotations attaches annotations to an image.
func (c *Client) AddAnnotations(ctx context.Context, imageID int64, annotations []Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(annotations) == 0 {
		return nil, fmt.Errorf("%w: no annotations given", ErrInvalidArgument)
	}
	payload := Record{"project_id": pid, "image_id": imageID, "annotations": annotations}
	return c.callRecord(ctx, http.MethodPost, "annotation", nil, payload)
}

// DeleteAnnotations removes annotations from an image. A nil ids removes every
// annotation the image carries.
func (c *Client) DeleteAnnotations(ctx context.Context, imageID int64, ids []int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if ids == nil {
		existing, err := c.GetAnnotations(ctx, &imageID, nil)
		if err != nil {
			return nil, err
		}
		ids = make([]int64, 0, len(existing))
		for _, ann := range existing {
			ids = append(ids, ann.ID())
		}
	}
	payload := Record{"project_id": pid, "image_id": imageID, "annotation_ids": ids}
	return c.callRecord(ctx, http.MethodDelete, "annotation", nil, payload)
}

// GetConditions returns the project's condition list with each entry's
// annotation class name set under "name".
func (c *Client) GetConditions(ctx context.Context) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	classes, err := c.GetAnnotationClasses(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string)
	for _, lbl := range classes.Records("label_list") {
		names[lbl.ID()] = lbl.String("name")
	}

	data, err := c.callDataRecord(ctx, http.MethodGet, projectPath(pid, "conditions"), nil, nil)
	if err != nil {
		return nil, err
	}
	conditions := data.Records("condition_list")
	out := make([]Record, 0, len(conditions))
	for _, cond := range conditions {
		rec := cond.Clone()
		if name, ok := names[cond.Int("annotation_class_id")]; ok {
			rec["name"] = name
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetGeotags lists the geotags placed on a drawing.
func (c *Client) GetGeotags(ctx context.Context, drawingID int64, params Params) ([]Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	q := mergeParams(params, Params{"drawing_id": drawingID})
	return c.callDataList(ctx, http.MethodGet, projectPath(pid, "geotags"), q, nil)
}

// AddGeotags places geotags on a drawing.
func (c *Client) AddGeotags(ctx context.Context, drawingID int64, geotags []Record) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(geotags) == 0 {
		return nil, fmt.Errorf("%w: no geotags given", ErrInvalidArgument)
	}
	payload := Record{"drawing_id": drawingID, "geotags": geotags}
	return c.callRecord(ctx, http.MethodPost, projectPath(pid, "geotags/bulk.create"), nil, payload)
}

// DeleteGeotags removes geotags from a drawing. The API takes deletions as a
// POST.
func (c *Client) DeleteGeotags(ctx context.Context, drawingID int64, ids []int64) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no geotag ids given", ErrInvalidArgument)
	}
	payload := Record{"drawing_id": drawingID, "geotag_ids": ids}
	return c.callRecord(ctx, http.MethodPost, projectPath(pid, "geotags/bulk.delete"), nil, payload)
}
