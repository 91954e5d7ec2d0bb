package crop

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/fake"
)

type stubSource struct {
	images      map[int64]t2d2.Record
	annotations map[int64][]t2d2.Record
	pixels      map[int64]image.Image
}

func (s stubSource) GetImages(_ context.Context, ids []int64, _ t2d2.Params) ([]t2d2.Record, error) {
	out := make([]t2d2.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.images[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s stubSource) GetAnnotations(_ context.Context, imageID *int64, _ t2d2.Params) ([]t2d2.Record, error) {
	return s.annotations[*imageID], nil
}

func (s stubSource) DownloadAssets(_ context.Context, ids []int64, _ t2d2.AssetType, dir string, _ bool) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		img, ok := s.pixels[id]
		if !ok {
			return nil, errors.New("object not found")
		}
		path := filepath.Join(dir, "img.png")
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		if err := png.Encode(f, img); err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		out[id] = path
	}
	return out, nil
}

func TestRun(t *testing.T) {
	hidden := annotation(12, ShapePoint, "#FF0000", 0.9, 0.9)
	hidden["visible"] = false
	src := stubSource{
		images: map[int64]t2d2.Record{
			1: {"id": 1.0, "info": map[string]any{"width": 200.0, "height": 100.0}},
			2: {"id": 2.0},
		},
		annotations: map[int64][]t2d2.Record{
			1: {
				annotation(10, ShapeRectangle, "#00FF00", 0.25, 0.25, 0.5, 0.75),
				annotation(11, ShapePoint, "#FF0000", 0.1, 0.1),
				hidden,
			},
			2: {annotation(20, ShapePoint, "#FF0000", 0.5, 0.5)},
		},
		pixels: map[int64]image.Image{1: greyImage(200, 100)},
	}

	dir := t.TempDir()
	sum, err := New(WithSheets(true)).Run(context.Background(), src, []int64{1, 2}, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TotalImages)
	assert.Equal(t, 1, sum.SuccessfulDownloads)
	assert.Equal(t, 1, sum.FailedDownloads)
	assert.Equal(t, 2, sum.CropsSaved)
	require.Len(t, sum.Images, 2)

	first := sum.Images[0]
	assert.Equal(t, 1, first.Index)
	assert.True(t, first.Downloaded)
	assert.Equal(t, 200, first.Width)
	assert.Equal(t, 100, first.Height)
	assert.Equal(t, 3, first.TotalAnnotations)
	assert.Equal(t, 2, first.VisibleAnnotations)
	assert.Equal(t, []string{
		filepath.Join(dir, "img1_crop_10_crack.jpg"),
		filepath.Join(dir, "img1_crop_11_crack.jpg"),
		filepath.Join(dir, "img1_sheet.png"),
	}, first.Files)

	f, err := os.Open(first.Files[0])
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Width)
	assert.Equal(t, 70, cfg.Height)

	second := sum.Images[1]
	assert.False(t, second.Downloaded)
	assert.Equal(t, 1, second.VisibleAnnotations)
	assert.Contains(t, second.Error, "object not found")
	assert.Empty(t, second.Files)
}

func TestRunRequiresIDs(t *testing.T) {
	_, err := New().Run(context.Background(), stubSource{}, nil, t.TempDir())
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "surface_crack", safeName("surface crack"))
	assert.Equal(t, "a_b", safeName("a/b"))
	assert.Equal(t, "unknown", safeName("  "))
}

func TestRunAgainstSandbox(t *testing.T) {
	srv := fake.New()
	srv.AddAPIKey("k")
	_, err := srv.AddProject(fake.ProjectSeed{
		ID:      5,
		Name:    "Culvert",
		Classes: []fake.ClassSeed{{ID: 1, Name: "spall", Color: "#0000FF"}},
		Images: []fake.ImageSeed{{
			ID: 50, Filename: "inlet.png",
			Annotations: []fake.AnnotationSeed{
				{ID: 500, ClassID: 1, Rating: "poor", Area: 0.4, Shape: ShapePolygon, Points: []float64{0.2, 0.2, 0.6, 0.2, 0.4, 0.6}},
				{ID: 501, ClassID: 1, Shape: ShapePoint, Points: []float64{0.9, 0.9}, Hidden: true},
			},
		}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, greyImage(160, 120)))
	require.NoError(t, srv.Store().Put(context.Background(), srv.Bucket(), "projects/5/images/inlet.png", &buf, int64(buf.Len()), "image/png"))

	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	client, err := t2d2.New(ctx, t2d2.APIKey("k"), t2d2.WithBaseURL(ts.URL+fake.DefaultPrefix), t2d2.WithStorage(srv.Store()))
	require.NoError(t, err)
	require.NoError(t, client.SetProject(ctx, 5))

	dir := t.TempDir()
	sum, err := New().Run(ctx, client, []int64{50}, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.SuccessfulDownloads)
	assert.Equal(t, 1, sum.CropsSaved)
	require.Len(t, sum.Images, 1)
	assert.Equal(t, 160, sum.Images[0].Width)
	assert.Equal(t, 2, sum.Images[0].TotalAnnotations)
	assert.Equal(t, 1, sum.Images[0].VisibleAnnotations)
	assert.Equal(t, []string{filepath.Join(dir, "img1_crop_500_spall.jpg")}, sum.Images[0].Files)
}
