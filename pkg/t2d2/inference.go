package t2d2

import (
	"context"
	"fmt"
	"net/http"
)

// RunAIInferencer submits images to a T2D2 AI model and returns the server's
// reply. The call does not wait for inference results.
func (c *Client) RunAIInferencer(ctx context.Context, req InferenceRequest) (Record, error) {
	pid, err := c.projectID()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	payload := req.Params.Clone()
	payload["project_id"] = pid
	payload["image_ids"] = req.ImageIDs
	if req.ModelID > 0 {
		payload["model_id"] = req.ModelID
	}
	return c.callRecord(ctx, http.MethodPost, projectPath(pid, "ai/inference"), nil, payload)
}
