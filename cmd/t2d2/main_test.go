package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/fake"
)

const cliKey = "cli-key"

type sandbox struct {
	srv *fake.Server
	url string
}

func newSandbox(t *testing.T) sandbox {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"API_URL", "API_KEY", "EMAIL", "PASSWORD", "ACCESS_TOKEN", "PROJECT", "FORMAT", "CONFIG", "TRACE_ENDPOINT", "S3_ENDPOINT"} {
		t.Setenv(envPrefix+"_"+name, "")
	}

	srv := fake.New()
	srv.AddAPIKey(cliKey)
	_, err := srv.AddProject(fake.ProjectSeed{
		ID:      7,
		Name:    "Harbour Bridge",
		Regions: []string{"East"},
		Classes: []fake.ClassSeed{{ID: 1, Name: "crack", Color: "#FF0000"}},
		Images: []fake.ImageSeed{
			{ID: 70, Filename: "east_01.jpg", Region: "East", CapturedDate: 1700000000, Tags: []string{"crack"},
				Annotations: []fake.AnnotationSeed{{ID: 700, ClassID: 1, Rating: "poor", Length: 2}}},
			{ID: 71, Filename: "east_02.jpg", Region: "East", CapturedDate: 1700000000},
		},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return sandbox{srv: srv, url: ts.URL + fake.DefaultPrefix}
}

func (s sandbox) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	return s.runApp(t, a, &out, args...)
}

func (s sandbox) runApp(t *testing.T, a *app, out *bytes.Buffer, args ...string) (string, error) {
	t.Helper()
	a.clientOpts = append(a.clientOpts, t2d2.WithStorage(s.srv.Store()))
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--api-url", s.url}, args...))
	err := root.Execute()
	return out.String(), err
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestProjectList(t *testing.T) {
	s := newSandbox(t)
	out, err := s.run(t, "--api-key", cliKey, "project", "list")
	require.NoError(t, err)

	var res struct {
		Total    int `json:"total_projects"`
		Projects []struct {
			ID int64 `json:"id"`
		} `json:"project_list"`
	}
	decodeJSON(t, out, &res)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, int64(7), res.Projects[0].ID)
}

func TestProjectInfoYAML(t *testing.T) {
	s := newSandbox(t)
	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "--format", "yaml", "project", "info")
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "Harbour Bridge", info["name"])
	assert.Equal(t, 7, info["id"])
}

func TestImagesListAndUpload(t *testing.T) {
	s := newSandbox(t)
	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "images", "list", "--ids", "71")
	require.NoError(t, err)
	var images []map[string]any
	decodeJSON(t, out, &images)
	require.Len(t, images, 1)
	assert.Equal(t, "east_02.jpg", images[0]["filename"])

	path := filepath.Join(t.TempDir(), "west_01.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	out, err = s.run(t, "--api-key", cliKey, "--project", "7", "images", "upload", "--region", "West", path)
	require.NoError(t, err)
	var created struct {
		Data []struct {
			Filename string `json:"filename"`
			Region   struct {
				Name string `json:"name"`
			} `json:"region"`
		} `json:"data"`
	}
	decodeJSON(t, out, &created)
	require.Len(t, created.Data, 1)
	assert.Equal(t, "west_01.jpg", created.Data[0].Filename)
	assert.Equal(t, "West", created.Data[0].Region.Name)
	assert.Len(t, s.srv.Store().Keys(s.srv.Bucket(), "projects/7/images/"), 1)

	out, err = s.run(t, "--api-key", cliKey, "--project", "7", "images", "list", "--limit", "1")
	require.NoError(t, err)
	decodeJSON(t, out, &images)
	assert.Len(t, images, 1)
}

func TestImagesUploadThroughS3Endpoint(t *testing.T) {
	s := newSandbox(t)
	objects := httptest.NewServer(s.srv.StorageHandler())
	t.Cleanup(objects.Close)
	t.Setenv("AWS_ACCESS_KEY_ID", "sandbox")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "sandbox")

	path := filepath.Join(t.TempDir(), "north_01.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))

	var out, errOut bytes.Buffer
	root := newRootCmd(newApp(&out, &errOut))
	root.SetArgs([]string{"--api-url", s.url, "--api-key", cliKey, "--project", "7",
		"--s3-endpoint", objects.URL, "images", "upload", path})
	require.NoError(t, root.Execute(), errOut.String())

	keys := s.srv.Store().Keys(s.srv.Bucket(), "projects/7/images/north_01_")
	require.Len(t, keys, 1)
	data, ok := s.srv.Store().Object(s.srv.Bucket(), keys[0])
	require.True(t, ok)
	assert.Equal(t, "jpeg", string(data))
}

func TestAnnotationsAddFromFile(t *testing.T) {
	s := newSandbox(t)
	file := filepath.Join(t.TempDir(), "anns.yaml")
	require.NoError(t, os.WriteFile(file, []byte("- annotation_class_id: 1\n  length: 4.5\n"), 0o644))

	_, err := s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "add", "--image", "71", "--file", file)
	require.NoError(t, err)

	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "list", "--image", "71")
	require.NoError(t, err)
	var anns []map[string]any
	decodeJSON(t, out, &anns)
	require.Len(t, anns, 1)
	assert.Equal(t, 4.5, anns[0]["length"])

	_, err = s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "add", "--image", "71")
	assert.Error(t, err)
}

func TestAnnotationsCrop(t *testing.T) {
	s := newSandbox(t)
	dir := t.TempDir()

	photo := filepath.Join(dir, "pier.png")
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(photo, buf.Bytes(), 0o644))

	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "images", "upload", photo)
	require.NoError(t, err)
	var created struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	decodeJSON(t, out, &created)
	require.Len(t, created.Data, 1)
	imageID := fmt.Sprint(created.Data[0].ID)

	anns := filepath.Join(dir, "anns.yaml")
	require.NoError(t, os.WriteFile(anns, []byte(
		"- annotation_class_id: 1\n  shape: 3\n  points: [[0.1, 0.1], [0.5, 0.5]]\n"+
			"- annotation_class_id: 1\n  shape: 8\n  points: [0.8, 0.8]\n  visible: false\n"), 0o644))
	_, err = s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "add", "--image", imageID, "--file", anns)
	require.NoError(t, err)

	crops := filepath.Join(dir, "crops")
	out, err = s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "crop", "--images", imageID, "--out", crops, "--sheet")
	require.NoError(t, err)

	var sum struct {
		Saved  int `json:"crops_saved"`
		Images []struct {
			Visible int      `json:"visible_annotations"`
			Files   []string `json:"files"`
		} `json:"images"`
	}
	decodeJSON(t, out, &sum)
	assert.Equal(t, 1, sum.Saved)
	require.Len(t, sum.Images, 1)
	assert.Equal(t, 1, sum.Images[0].Visible)
	require.Len(t, sum.Images[0].Files, 2)
	assert.Regexp(t, `img1_crop_\d+_crack\.jpg$`, sum.Images[0].Files[0])
	for _, f := range sum.Images[0].Files {
		assert.FileExists(t, f)
	}

	_, err = s.run(t, "--api-key", cliKey, "--project", "7", "annotations", "crop")
	assert.Error(t, err)
}

func TestClassesAndInfer(t *testing.T) {
	s := newSandbox(t)
	_, err := s.run(t, "--api-key", cliKey, "--project", "7", "classes", "add", "spall", "--color", "#00FF00", "--material", "concrete")
	require.NoError(t, err)

	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "classes", "list")
	require.NoError(t, err)
	var classes []map[string]any
	decodeJSON(t, out, &classes)
	require.Len(t, classes, 2)
	assert.Equal(t, "spall", classes[1]["name"])

	_, err = s.run(t, "--api-key", cliKey, "--project", "7", "infer", "--images", "70,71", "--model", "3")
	require.NoError(t, err)
	jobs := s.srv.Inferences()
	require.Len(t, jobs, 1)
	assert.EqualValues(t, 3, jobs[0].Int("model_id"))
}

func TestNotify(t *testing.T) {
	s := newSandbox(t)
	_, err := s.run(t, "--api-key", cliKey, "notify", "Done", "Upload finished")
	require.NoError(t, err)
	notes := s.srv.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Done", notes[0].String("title"))
}

func TestSummaries(t *testing.T) {
	s := newSandbox(t)
	out, err := s.run(t, "--api-key", cliKey, "--project", "7", "summary", "images")
	require.NoError(t, err)
	var images map[string]map[string]int
	decodeJSON(t, out, &images)
	assert.Equal(t, map[string]int{"East": 2}, images["regions"])
	assert.Equal(t, map[string]int{"2023-11-14": 2}, images["dates"])
	assert.Equal(t, map[string]int{"crack": 1}, images["tags"])

	out, err = s.run(t, "--api-key", cliKey, "--project", "7", "summary", "conditions")
	require.NoError(t, err)
	var conditions map[string][]map[string]any
	decodeJSON(t, out, &conditions)
	require.Len(t, conditions["East"], 1)
	assert.Equal(t, "crack", conditions["East"][0]["label"])
	assert.Equal(t, "poor", conditions["East"][0]["rating"])
	assert.Equal(t, []any{700.0}, conditions["East"][0]["annotation_ids"])
}

func TestTracedRun(t *testing.T) {
	s := newSandbox(t)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.tracer = tp
	_, err := s.runApp(t, a, &out, "--api-key", cliKey, "--project", "7", "images", "list")
	require.NoError(t, err)

	spans := rec.Ended()
	require.NotEmpty(t, spans)
	for _, span := range spans {
		assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	}
}

func TestTraceEndpointInstallsExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	s := newSandbox(t)
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	_, err := s.runApp(t, a, &out, "--api-key", cliKey, "--trace-endpoint", "localhost:4317", "--trace-insecure", "classes", "list", "--project", "7")
	require.NoError(t, err)
	require.NotNil(t, a.telemetry)
	assert.NotNil(t, a.tracer)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	a.close(ctx)
}

func TestConfigPrecedence(t *testing.T) {
	s := newSandbox(t)
	file := filepath.Join(t.TempDir(), "t2d2.yaml")
	cfg := fmt.Sprintf("api-key: %s\nproject: 7\nformat: yaml\n", cliKey)
	require.NoError(t, os.WriteFile(file, []byte(cfg), 0o644))

	// The file supplies key, project and format.
	out, err := s.run(t, "--config", file, "project", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Harbour Bridge")

	// Environment beats the file, flags beat both.
	t.Setenv("T2D2_FORMAT", "json")
	out, err = s.run(t, "--config", file, "project", "info")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Harbour Bridge"`)

	_, err = s.run(t, "--config", file, "--api-key", "wrong", "project", "info")
	assert.ErrorIs(t, err, t2d2.ErrAuthentication)
	assert.Equal(t, 2, exitCode(err))
}

func TestDefaultConfigFile(t *testing.T) {
	s := newSandbox(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".t2d2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".t2d2", "config.yaml"), []byte("api-key: "+cliKey+"\n"), 0o644))

	_, err := s.run(t, "project", "list")
	require.NoError(t, err)
}

func TestConfigErrors(t *testing.T) {
	s := newSandbox(t)

	_, err := s.run(t, "--api-key", cliKey, "images", "list")
	assert.ErrorIs(t, err, t2d2.ErrProjectNotSet)
	assert.Equal(t, 3, exitCode(err))

	_, err = s.run(t, "--api-key", cliKey, "--format", "xml", "project", "list")
	assert.ErrorContains(t, err, "unsupported format")

	_, err = s.run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "project", "list")
	assert.Error(t, err)

	_, err = s.run(t, "project", "list")
	assert.ErrorIs(t, err, t2d2.ErrInvalidCredentials)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{t2d2.ErrInvalidCredentials, 2},
		{&t2d2.APIError{StatusCode: 403}, 2},
		{&t2d2.APIError{StatusCode: 404}, 3},
		{t2d2.ErrProjectNotSet, 3},
		{&t2d2.RequestError{Err: errors.New("dial tcp")}, 4},
		{&t2d2.APIError{StatusCode: 500}, 1},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
