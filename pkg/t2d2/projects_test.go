package t2d2_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/fake"
)

func TestGetProjects(t *testing.T) {
	srv, ts := newSandbox(t)
	_, err := srv.AddProject(bridgeProject())
	require.NoError(t, err)
	_, err = srv.AddProject(fake.ProjectSeed{Name: "Tunnel"})
	require.NoError(t, err)
	c := newClient(t, srv, ts)

	projects, err := c.GetProjects(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, projects.Int("total_projects"))
	list := projects.Records("project_list")
	require.Len(t, list, 2)
	assert.Equal(t, testProjectID, list[0].ID())
	assert.Equal(t, "Bridge 7", list[0].Map("profile").String("name"))
	assert.Equal(t, "Tunnel", list[1].Map("profile").String("name"))
}

func TestSetProject(t *testing.T) {
	c, _ := newProjectClient(t)

	pid, err := c.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, testProjectID, pid)

	project := c.Project()
	require.NotNil(t, project)
	assert.Equal(t, fake.DefaultS3BaseURL, project.Map("config").String("s3_base_url"))
	assert.Len(t, project.Records("regions"), 2)
}

func TestSetProjectUnknownID(t *testing.T) {
	srv, ts := newSandbox(t)
	c := newClient(t, srv, ts)

	err := c.SetProject(context.Background(), 77)
	assert.ErrorIs(t, err, t2d2.ErrNotFound)
	_, err = c.ProjectID()
	assert.ErrorIs(t, err, t2d2.ErrProjectNotSet)
}

func TestSetProjectSuccessFalseIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"message":"no access to project"}`))
	}))
	defer ts.Close()

	c, err := t2d2.New(context.Background(), t2d2.APIKey("k"), t2d2.WithBaseURL(ts.URL))
	require.NoError(t, err)
	err = c.SetProject(context.Background(), 3)
	assert.ErrorIs(t, err, t2d2.ErrNotFound)
	assert.Contains(t, err.Error(), "no access to project")
}

func TestSetProjectReplacesActiveProject(t *testing.T) {
	c, srv := newProjectClient(t)
	other, err := srv.AddProject(fake.ProjectSeed{Name: "Culvert"})
	require.NoError(t, err)

	require.NoError(t, c.SetProject(context.Background(), other))
	pid, err := c.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, other, pid)

	images, err := c.GetImages(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestGetProjectInfo(t *testing.T) {
	c, _ := newProjectClient(t)

	info, err := c.GetProjectInfo()
	require.NoError(t, err)
	assert.Equal(t, testProjectID, info.ID)
	assert.Equal(t, "Bridge 7", info.Name)
	assert.Equal(t, "1 Main St", info.Address)
	assert.Equal(t, "deck survey", info.Description)
	assert.Equal(t, "ops@example.com", info.CreatedBy)
	assert.Equal(t, time.Unix(day1, 0).UTC(), info.CreatedAt)
	assert.Equal(t, time.UTC, info.CreatedAt.Location())
	assert.EqualValues(t, 3, info.Statistics.Int("images"))
	assert.EqualValues(t, 1, info.Statistics.Int("drawings"))
}

func TestGetProjectInfoWithoutStatistics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":9,"profile":{"name":"Dam"}}}`))
	}))
	defer ts.Close()

	c, err := t2d2.New(context.Background(), t2d2.APIKey("k"), t2d2.WithBaseURL(ts.URL))
	require.NoError(t, err)
	require.NoError(t, c.SetProject(context.Background(), 9))

	info, err := c.GetProjectInfo()
	require.NoError(t, err)
	assert.Equal(t, "Dam", info.Name)
	assert.True(t, info.CreatedAt.IsZero())
	assert.NotNil(t, info.Statistics)
	assert.Empty(t, info.Statistics)
}

func TestNotifyUser(t *testing.T) {
	srv, ts := newSandbox(t)
	c := newClient(t, srv, ts)

	res, err := c.NotifyUser(context.Background(), "Inspection ready", "Bridge 7 has new images")
	require.NoError(t, err)
	assert.Equal(t, true, res["success"])

	notes := srv.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Inspection ready", notes[0].String("title"))
	assert.Equal(t, "Bridge 7 has new images", notes[0].String("message"))
}

func TestAddAndUpdateRegion(t *testing.T) {
	c, _ := newProjectClient(t)
	ctx := context.Background()

	res, err := c.AddRegion(ctx, "East")
	require.NoError(t, err)
	assert.Equal(t, "East", res.Map("data").String("name"))

	_, err = c.AddRegion(ctx, "North")
	var apiErr *t2d2.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = c.AddRegion(ctx, "  ")
	assert.ErrorIs(t, err, t2d2.ErrInvalidArgument)

	updated, err := c.UpdateRegion(ctx, "North", t2d2.Record{"name": "North Span"})
	require.NoError(t, err)
	assert.Equal(t, "North Span", updated.Map("data").String("name"))

	_, err = c.UpdateRegion(ctx, "West", t2d2.Record{"name": "x"})
	assert.ErrorIs(t, err, t2d2.ErrNotFound)
}

func TestNumericProjectFieldsKeepDecimalForm(t *testing.T) {
	var regionPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/project/3":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":3,"created_by":12345678,"regions":[{"_id":1000000,"name":"North"}]}}`))
		case r.Method == http.MethodPut:
			regionPath = r.URL.Path
			_, _ = w.Write([]byte(`{"success":true,"message":"updated"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c, err := t2d2.New(ctx, t2d2.APIKey("k"), t2d2.WithBaseURL(ts.URL))
	require.NoError(t, err)
	require.NoError(t, c.SetProject(ctx, 3))

	info, err := c.GetProjectInfo()
	require.NoError(t, err)
	assert.Equal(t, "12345678", info.CreatedBy)

	_, err = c.UpdateRegion(ctx, "North", t2d2.Record{"name": "North span"})
	require.NoError(t, err)
	assert.Equal(t, "/3/categories/regions/1000000", regionPath)
}
