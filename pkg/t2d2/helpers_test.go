package t2d2_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/fake"
)

const (
	testAPIKey    = "test-key"
	testProjectID = int64(42)
)

// 2023-11-14T22:13:20Z and one day later.
const (
	day1 = int64(1700000000)
	day2 = int64(1700086400)
)

func bridgeProject() fake.ProjectSeed {
	return fake.ProjectSeed{
		ID:          testProjectID,
		Name:        "Bridge 7",
		Address:     "1 Main St",
		Description: "deck survey",
		CreatedBy:   "ops@example.com",
		CreatedAt:   day1,
		Regions:     []string{"North", "South"},
		Tags:        []string{"crack"},
		Materials:   []string{"concrete", "steel"},
		Classes: []fake.ClassSeed{
			{ID: 1, Name: "crack", Color: "#FF0000"},
			{ID: 2, Name: "spall", Color: "#00FF00"},
		},
		Conditions: []fake.ConditionSeed{
			{ID: 11, ClassID: 1, Rating: "poor"},
			{ID: 12, ClassID: 2, Rating: "fair"},
		},
		Images: []fake.ImageSeed{
			{
				ID: 100, Filename: "deck_01.jpg", Region: "North", CapturedDate: day1,
				Tags: []string{"crack"},
				Annotations: []fake.AnnotationSeed{
					{ID: 501, ClassID: 1, Rating: "poor", Length: 2.5, Area: 0.5},
					{ID: 502, ClassID: 1, Rating: "poor", Length: 1.5, Area: 0.25},
				},
			},
			{
				ID: 101, Filename: "deck_02.jpg", Region: "North", CapturedDate: day2,
				Annotations: []fake.AnnotationSeed{
					{ID: 503, ClassID: 2, Area: 1.0},
				},
			},
			{ID: 102, Filename: "pier_01.jpg", Region: "South", CapturedDate: day2, Tags: []string{"crack", "stain"}},
		},
		Drawings: []string{"plan.pdf"},
	}
}

func newSandbox(t *testing.T, opts ...fake.Option) (*fake.Server, *httptest.Server) {
	t.Helper()
	srv := fake.New(opts...)
	srv.AddAPIKey(testAPIKey)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func newClient(t *testing.T, srv *fake.Server, ts *httptest.Server, opts ...t2d2.Option) *t2d2.Client {
	t.Helper()
	base := []t2d2.Option{
		t2d2.WithBaseURL(ts.URL + fake.DefaultPrefix),
		t2d2.WithStorage(srv.Store()),
	}
	c, err := t2d2.New(context.Background(), t2d2.APIKey(testAPIKey), append(base, opts...)...)
	require.NoError(t, err)
	return c
}

// newProjectClient returns a client whose active project is the seeded bridge.
func newProjectClient(t *testing.T) (*t2d2.Client, *fake.Server) {
	t.Helper()
	srv, ts := newSandbox(t)
	_, err := srv.AddProject(bridgeProject())
	require.NoError(t, err)
	c := newClient(t, srv, ts)
	require.NoError(t, c.SetProject(context.Background(), testProjectID))
	return c, srv
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func ids(recs []t2d2.Record) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID())
	}
	return out
}
