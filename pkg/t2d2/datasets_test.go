package t2d2_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

func TestDatasetLifecycle(t *testing.T) {
	c, _ := newProjectClient(t)
	ctx := context.Background()

	list, err := c.GetDatasets(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, list.Int("total_datasets"))

	ds, err := c.CreateDataset(ctx, "deck cracks")
	require.NoError(t, err)
	assert.Equal(t, "deck cracks", ds.String("name"))
	assert.Equal(t, false, ds["public"])
	assert.Empty(t, ds["image_ids"])

	other, err := c.CreateDataset(ctx, "pier stains")
	require.NoError(t, err)

	ds, err = c.UpdateDatasetImages(ctx, ds.ID(), t2d2.DatasetAdd, []int64{100, 101, 100})
	require.NoError(t, err)
	assert.Equal(t, []any{100.0, 101.0}, ds["image_ids"])
	assert.EqualValues(t, 2, ds.Int("image_size"))

	ds, err = c.UpdateDatasetImages(ctx, ds.ID(), t2d2.DatasetRemove, []int64{100})
	require.NoError(t, err)
	assert.Equal(t, []any{101.0}, ds["image_ids"])

	filtered, err := c.GetDatasets(ctx, t2d2.Params{"name": "pier"})
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID()}, ids(filtered.Records("dataset_list")))

	res, err := c.DeleteDatasets(ctx, ds.ID(), other.ID())
	require.NoError(t, err)
	assert.Equal(t, "2 datasets deleted", res.String("message"))
	list, err = c.GetDatasets(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list.Records("dataset_list"))
}

func TestDatasetValidation(t *testing.T) {
	c, _ := newProjectClient(t)
	ctx := context.Background()

	_, err := c.CreateDataset(ctx, " ")
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)
	_, err = c.DeleteDatasets(ctx)
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)
	_, err = c.UpdateDatasetImages(ctx, 1, "replace", []int64{100})
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)
	_, err = c.UpdateDatasetImages(ctx, 1, t2d2.DatasetAdd, nil)
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)

	_, err = c.UpdateDatasetImages(ctx, 9999, t2d2.DatasetAdd, []int64{100})
	assert.ErrorIs(t, err, t2d2.ErrNotFound)

	ds, err := c.CreateDataset(ctx, "empty")
	require.NoError(t, err)
	_, err = c.UpdateDatasetImages(ctx, ds.ID(), t2d2.DatasetAdd, []int64{100, 7777})
	var apiErr *t2d2.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "image 7777 not found", apiErr.Message)
}
