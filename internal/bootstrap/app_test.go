package bootstrap

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchaser/internal/shared/config"
	"docchaser/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func devConfig() config.Config {
	return config.Config{
		Env:                      "dev",
		DispatchInterval:         time.Hour,
		DefaultChannelPreference: "Email",
		GmailDailyLimit:          2000,
		GmailWarnRatio:           0.8,
	}
}

func TestBuildInMemoryWiresEndToEnd(t *testing.T) {
	app, err := Build(testContext(t), devConfig())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.Nil(t, app.Dispatcher.Lease)

	body, _ := json.Marshal(map[string]any{
		"task":         "Year end accounts",
		"documents":    "Bank statements\nSales invoices",
		"who":          "Jane Doe",
		"urgency":      "Medium",
		"contactEmail": "jane@example.com",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chasers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created struct {
		Chaser struct {
			ID string `json:"id"`
		} `json:"chaser"`
		Schedule []json.RawMessage `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Len(t, created.Schedule, 4)

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/chasers/"+created.Chaser.ID+"/documents", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var docs struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &docs))
	assert.Equal(t, 2, docs.Total)

	resp = httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/customers/search?q=jane", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "jane@example.com")
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	_, err := Build(testContext(t), cfg)
	require.Error(t, err)
}

func TestBuildRejectsMissingPolicyFile(t *testing.T) {
	cfg := devConfig()
	cfg.PolicyFile = t.TempDir() + "/missing.yaml"
	_, err := Build(testContext(t), cfg)
	require.Error(t, err)
}

func TestSchedulerPassOnEmptyRepo(t *testing.T) {
	app, err := Build(testContext(t), devConfig())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	sum, ran := app.Scheduler.RunNow(testContext(t))
	require.True(t, ran)
	assert.Zero(t, sum.Due)
	assert.Zero(t, sum.Sent)
}
