package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/certstudio/apps/api/echo"
	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
	appfs "github.com/trezcool/certstudio/fs"
	emailsvc "github.com/trezcool/certstudio/services/email"
	rastersvc "github.com/trezcool/certstudio/services/raster"
	blobstore "github.com/trezcool/certstudio/storage/blob"
	"github.com/trezcool/certstudio/storage/cache"
	inmemdb "github.com/trezcool/certstudio/storage/database/inmem"
	testutil "github.com/trezcool/certstudio/tests"
)

type testApp struct {
	Server
	conf     *core.Config
	repo     certificate.Repository
	mailer   *emailsvc.ConsoleService
	sessions *SessionRegistry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	conf := testutil.NewConfig(t)
	logger := testutil.NewLogger()

	validate, translator := core.NewValidator()
	certificate.InitValidators(validate, translator)

	repo := inmemdb.NewDesignRepository(inmemdb.Open())
	blobs, err := blobstore.NewLocalStoreFromConfig(conf)
	require.NoError(t, err)
	mailer := emailsvc.NewConsoleServiceMock(conf, core.NewMailTemplates(appfs.FS, appfs.EmailTemplatesDir, true), logger)
	designs := certificate.NewService(repo, blobs, mailer, logger, conf.FrontendBaseURL)

	loader := rastersvc.NewLoader(nil, conf.Storage.ArtifactDir)
	exporter := certificate.NewExporter(rastersvc.NewBuiltin(loader), cache.NewMemoryCache(8), conf.Export.Ratio, logger)

	sessions := NewSessionRegistry(0, logger)
	t.Cleanup(sessions.Close)

	srv := NewServer(&Options{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		Designs:        designs,
		Sessions:       sessions,
		Session: certificate.SessionOptions{
			Loader:   loader,
			Exporter: exporter,
			Gateway:  designs,
			Logger:   logger,
		},
	}, nil)

	return &testApp{Server: srv, conf: conf, repo: repo, mailer: mailer, sessions: sessions}
}

func (app *testApp) token(t *testing.T, id string, roles ...string) string {
	return testutil.Token(t, app.conf, id, roles...)
}

// do sends a JSON request and returns the recorded response.
func (app *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type httpErr struct {
	Error string `json:"error"`
}

type elementResp struct {
	Kind    certificate.Kind       `json:"kind"`
	Element map[string]interface{} `json:"element"`
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e httpErr
	decode(t, rec, &e)
	return e.Error
}

func fieldsOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var fields map[string]string
	decode(t, rec, &fields)
	return fields
}

func stateOf(t *testing.T, rec *httptest.ResponseRecorder) certificate.SessionState {
	t.Helper()
	var st certificate.SessionState
	decode(t, rec, &st)
	return st
}

func elementOf(t *testing.T, rec *httptest.ResponseRecorder) elementResp {
	t.Helper()
	var el elementResp
	decode(t, rec, &el)
	return el
}

func newSession(t *testing.T, app *testApp, token string, body interface{}) certificate.SessionState {
	t.Helper()
	rec := app.do(t, http.MethodPost, "/v1/sessions", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st certificate.SessionState
	decode(t, rec, &st)
	return st
}
