package web

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/alchemist/internal/config"
	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/metrics"
	"github.com/JonMunkholm/alchemist/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	workersCSV = "WorkerID,WorkerName,Skills\nW1,Ana,cad\n"
	tasksCSV   = "TaskID,TaskName,RequiredSkills\nT1,Draw,cad\nT2,Weld,welding\n"
)

type upload struct {
	name string
	data string
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxFiles:      5,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Parallelism:   2,
		},
		Security: config.SecurityConfig{EnableCSP: true},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	catalog := core.DefaultCatalog()
	engine := core.NewEngine(catalog, core.DefaultCheckOptions())
	return NewServer(cfg, Deps{
		Engine:     engine,
		Normalizer: core.NewNormalizer(catalog, core.WithMaxFileSize(cfg.Upload.MaxFileSize)),
		Store:      workspace.NewStore(engine, 16, time.Hour),
		Limiter:    core.NewBatchLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Metrics:    metrics.New(cfg.Metrics.Enabled),
	})
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func createSession(t *testing.T, s *Server, files ...upload) workspace.Snapshot {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := serve(s, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var snap workspace.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeFindings(t *testing.T, rec *httptest.ResponseRecorder) findingsResponse {
	t.Helper()
	var resp findingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	t.Run("Should report status with security headers", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 2, resp.Uploads.MaxConcurrent)
	})

	t.Run("Should omit the policy header when disabled", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Security.EnableCSP = false })
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	})
}

func TestValidate(t *testing.T) {
	t.Run("Should return findings for posted tables", func(t *testing.T) {
		s := newTestServer(t, nil)
		body := `{"tables":[{"kind":"clients","name":"clients.csv","columns":["ClientID","ClientName"],"rows":[
			{"ClientID":"A","ClientName":"a"},{"ClientID":"B","ClientName":"b"},{"ClientID":"A","ClientName":"c"},
			{"ClientID":"C","ClientName":"d"},{"ClientID":"A","ClientName":"e"}]}]}`
		rec := serve(s, jsonRequest(http.MethodPost, "/api/validate", body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeFindings(t, rec)
		require.Len(t, resp.Findings, 2)
		assert.Equal(t, core.CodeDuplicateID, resp.Findings[0].Code)
		assert.Equal(t, 2, resp.Findings[0].Row)
		assert.Equal(t, 4, resp.Findings[1].Row)
		assert.True(t, resp.Summary.Blocking)
	})

	t.Run("Should return an empty list for no tables", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := serve(s, jsonRequest(http.MethodPost, "/api/validate", `{"tables":[]}`))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"findings":[]`)
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := serve(s, jsonRequest(http.MethodPost, "/api/validate", `{"tables":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "UPL004", decodeError(t, rec).Code)
	})
}

func TestCreateSession(t *testing.T) {
	t.Run("Should normalize and validate uploaded files", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s,
			upload{"workers.csv", workersCSV},
			upload{"tasks.csv", tasksCSV},
		)

		assert.NotEmpty(t, snap.ID)
		require.Len(t, snap.Tables, 2)
		assert.Equal(t, core.KindWorkers, snap.Tables[0].Kind)
		assert.Equal(t, core.KindTasks, snap.Tables[1].Kind)
		require.Len(t, snap.Findings, 1)
		assert.Equal(t, core.CodeUncoveredSkill, snap.Findings[0].Code)
		assert.Equal(t, 1, snap.Findings[0].Row)
		assert.Contains(t, snap.Findings[0].Message, "'welding'")
	})

	t.Run("Should report unreadable files without failing the batch", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s,
			upload{"workers.csv", workersCSV},
			upload{"broken.xlsx", "not a workbook"},
		)

		require.Len(t, snap.Tables, 1)
		require.Len(t, snap.Failures, 1)
		assert.Equal(t, "broken.xlsx", snap.Failures[0].Name)
		assert.Equal(t, "FILE002", snap.Failures[0].Code)
	})

	t.Run("Should require at least one file", func(t *testing.T) {
		s := newTestServer(t, nil)
		body, contentType := multipartBody(t)
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
		req.Header.Set("Content-Type", contentType)
		rec := serve(s, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "FILE004", decodeError(t, rec).Code)
		assert.Equal(t, 0, s.store.Len())
	})

	t.Run("Should refuse more files than allowed", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Upload.MaxFiles = 1 })
		body, contentType := multipartBody(t, upload{"a.csv", "id\n1\n"}, upload{"b.csv", "id\n2\n"})
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
		req.Header.Set("Content-Type", contentType)
		rec := serve(s, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "FILE003", decodeError(t, rec).Code)
	})

	t.Run("Should report an oversized file and keep the rest of the batch", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = int64(len(workersCSV)) })
		require.Greater(t, len(tasksCSV), len(workersCSV))

		snap := createSession(t, s,
			upload{"workers.csv", workersCSV},
			upload{"tasks.csv", tasksCSV},
		)

		require.Len(t, snap.Tables, 1)
		assert.Equal(t, core.KindWorkers, snap.Tables[0].Kind)
		require.Len(t, snap.Failures, 1)
		assert.Equal(t, 1, snap.Failures[0].Index)
		assert.Equal(t, "tasks.csv", snap.Failures[0].Name)
		assert.Equal(t, "FILE001", snap.Failures[0].Code)
		assert.Equal(t, 1, s.store.Len())
	})

	t.Run("Should reject a non-multipart body", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec := serve(s, jsonRequest(http.MethodPost, "/api/sessions", `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "UPL004", decodeError(t, rec).Code)
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("Should fix a finding by editing a cell and then export", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"workers.csv", workersCSV}, upload{"tasks.csv", tasksCSV})
		base := "/api/sessions/" + snap.ID

		rec := serve(s, httptest.NewRequest(http.MethodGet, base+"/export", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "EXP001", decodeError(t, rec).Code)

		rec = serve(s, jsonRequest(http.MethodPatch, base+"/tables/tasks/rows/1",
			`{"column":"RequiredSkills","value":"cad"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeFindings(t, rec)
		assert.Empty(t, resp.Findings)
		assert.False(t, resp.Summary.Blocking)

		rec = serve(s, httptest.NewRequest(http.MethodGet, base+"/export", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), snap.ID)

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"workers.xlsx", "tasks.xlsx", "rules.json"}, names)
	})

	t.Run("Should replace a row by table index", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"workers.csv", workersCSV}, upload{"tasks.csv", tasksCSV})

		rec := serve(s, jsonRequest(http.MethodPut, "/api/sessions/"+snap.ID+"/tables/1/rows/1",
			`{"TaskID":"T1","TaskName":"Weld","RequiredSkills":"cad"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeFindings(t, rec)
		require.Len(t, resp.Findings, 1)
		assert.Equal(t, core.CodeDuplicateID, resp.Findings[0].Code)
	})

	t.Run("Should reject edits outside the table", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})
		base := "/api/sessions/" + snap.ID

		rec := serve(s, jsonRequest(http.MethodPatch, base+"/tables/tasks/rows/9", `{"column":"TaskName","value":"x"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "SES003", decodeError(t, rec).Code)

		rec = serve(s, jsonRequest(http.MethodPatch, base+"/tables/clients/rows/0", `{"column":"TaskName","value":"x"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "SES002", decodeError(t, rec).Code)

		rec = serve(s, jsonRequest(http.MethodPatch, base+"/tables/tasks/rows/first", `{"column":"TaskName","value":"x"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = serve(s, jsonRequest(http.MethodPatch, base+"/tables/tasks/rows/0", `{"column":"","value":"x"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should record history for uploads and edits", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})
		base := "/api/sessions/" + snap.ID

		rec := serve(s, jsonRequest(http.MethodPatch, base+"/tables/0/rows/0", `{"column":"TaskName","value":"Sketch"}`))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = serve(s, httptest.NewRequest(http.MethodGet, base+"/history", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Entries []workspace.Entry `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, workspace.ActionUpload, resp.Entries[0].Action)
		assert.Equal(t, workspace.ActionCellEdit, resp.Entries[1].Action)
		assert.Equal(t, "Sketch", resp.Entries[1].NewValue.String())
	})

	t.Run("Should replace files wholesale", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})

		body, contentType := multipartBody(t, upload{"clients.csv", "ClientID,ClientName\nC1,Acme\n"})
		req := httptest.NewRequest(http.MethodPut, "/api/sessions/"+snap.ID+"/files", body)
		req.Header.Set("Content-Type", contentType)
		rec := serve(s, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var next workspace.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
		assert.Equal(t, snap.ID, next.ID)
		require.Len(t, next.Tables, 1)
		assert.Equal(t, core.KindClients, next.Tables[0].Kind)
		assert.Empty(t, next.Findings)
	})

	t.Run("Should delete a session", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})
		base := "/api/sessions/" + snap.ID

		rec := serve(s, httptest.NewRequest(http.MethodDelete, base, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = serve(s, httptest.NewRequest(http.MethodGet, base, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "SES001", decodeError(t, rec).Code)

		rec = serve(s, httptest.NewRequest(http.MethodDelete, base, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRules(t *testing.T) {
	t.Run("Should start from the default criteria", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/sessions/"+snap.ID+"/rules", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"key":"phaseBalance"`)
	})

	t.Run("Should store a valid document with extra fields", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})

		rec := serve(s, jsonRequest(http.MethodPut, "/api/sessions/"+snap.ID+"/rules",
			`{"criteria":[{"label":"Cost","key":"cost","value":80}],"coRun":[["T1","T2"]]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"value":80`)
		assert.Contains(t, rec.Body.String(), `"coRun"`)
	})

	t.Run("Should reject out of range weights", func(t *testing.T) {
		s := newTestServer(t, nil)
		snap := createSession(t, s, upload{"tasks.csv", tasksCSV})

		rec := serve(s, jsonRequest(http.MethodPut, "/api/sessions/"+snap.ID+"/rules",
			`{"criteria":[{"label":"Cost","key":"cost","value":150}]}`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "RUL001", decodeError(t, rec).Code)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("Should answer 429 once the bucket is empty", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) {
			c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1, UploadLimit: 1}
		})

		first := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, first.Code)

		second := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "60", second.Header().Get("Retry-After"))
		assert.Equal(t, "RATE001", decodeError(t, second).Code)
	})

	t.Run("Should track clients separately", func(t *testing.T) {
		rl := newRateLimiter(60, 1)
		assert.True(t, rl.allow("10.0.0.1"))
		assert.False(t, rl.allow("10.0.0.1"))
		assert.True(t, rl.allow("10.0.0.2"))
		assert.Equal(t, 1, rl.retryAfter())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("Should expose request counters", func(t *testing.T) {
		s := newTestServer(t, nil)
		serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `alchemist_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	})

	t.Run("Should not mount the route when disabled", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) { c.Metrics.Enabled = false })
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	t.Run("Should allow configured origins", func(t *testing.T) {
		s := newTestServer(t, func(c *config.Config) {
			c.Security.CORSAllowedOrigins = []string{"https://app.example.com"}
		})
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := serve(s, req)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec = serve(s, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session", workspace.ErrSessionNotFound, http.StatusNotFound},
		{"busy", core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{"too large", core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"blocked", errExportBlocked, http.StatusConflict},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run("Should map "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
