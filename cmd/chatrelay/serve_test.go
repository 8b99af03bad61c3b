package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/chatrelay/chatrelay/internal/channel/adapters/slack"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/server"
)

// fakeSlack answers the Web API methods used by the gateway.
type fakeSlack struct {
	mu    sync.Mutex
	calls []slackCall
}

type slackCall struct {
	method string
	form   url.Values
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := strings.TrimPrefix(r.URL.Path, "/api/")
	f.mu.Lock()
	f.calls = append(f.calls, slackCall{method: method, form: r.Form})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "users.info":
		_, _ = io.WriteString(w, `{"ok":true,"user":{"id":"U1","name":"jane","real_name":"Jane Doe","profile":{"email":"jane@example.com"}}}`)
	case "chat.postMessage":
		_, _ = io.WriteString(w, `{"ok":true,"channel":"C1","ts":"1718000001.000100"}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true}`)
	}
}

func (f *fakeSlack) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func (f *fakeSlack) posted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.method == "chat.postMessage" {
			out = append(out, c.form.Get("text"))
		}
	}
	return out
}

func testGatewayConfig(apiURL string) config.Config {
	cfg := config.Default()
	cfg.Plugins.Enabled = []string{pathMemory, pathSlack, pathAcknowledge}
	cfg.Plugins.DefaultDatastore = "memory"
	cfg.Janitor.Enabled = false
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.SigningSecret = "test-secret"
	cfg.Slack.BotUserID = "UBOT"
	cfg.Slack.APIURL = apiURL
	cfg.Slack.AuthorizedChannels = []string{"C1"}
	cfg.Slack.ProcessInline = true
	return cfg
}

func startGateway(t *testing.T, cfg config.Config) (*server.Server, *datastore.Dispatcher) {
	t.Helper()
	var (
		srv   *server.Server
		store *datastore.Dispatcher
	)
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))),
		gatewayOptions(),
		fx.Populate(&srv, &store),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return srv, store
}

func TestGateway_WebhookToReply(t *testing.T) {
	api := &fakeSlack{}
	apiServer := httptest.NewServer(api)
	defer apiServer.Close()

	srv, store := startGateway(t, testGatewayConfig(apiServer.URL+"/api/"))

	eventTS := strconv.FormatInt(time.Now().Unix(), 10) + ".000100"
	body := `{"token":"t","team_id":"T1","type":"event_callback","event_id":"Ev1","event":{"type":"message","channel":"C1","user":"U1","text":"hello <@UBOT>","ts":"` + eventTS + `","channel_type":"channel"}}`
	reqTS := strconv.FormatInt(time.Now().Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", reqTS)
	req.Header.Set("X-Slack-Signature", slack.Sign("test-secret", reqTS, []byte(body)))
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Message received."}, api.posted())
	assert.Contains(t, api.methods(), "users.info")
	assert.Contains(t, api.methods(), "reactions.add")

	_, found, err := store.ReadDataContent(context.Background(), store.Processing(), "C1-"+eventTS+".txt")
	require.NoError(t, err)
	assert.True(t, found, "processing marker must be written")
}

func TestGateway_HealthAndPing(t *testing.T) {
	apiServer := httptest.NewServer(&fakeSlack{})
	defer apiServer.Close()

	srv, _ := startGateway(t, testGatewayConfig(apiServer.URL+"/api/"))

	for _, path := range []string{"/ping", "/health"} {
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestGateway_UnknownCapabilityFailsStart(t *testing.T) {
	cfg := testGatewayConfig("https://slack.invalid/api/")
	cfg.Plugins.Enabled = append(cfg.Plugins.Enabled, "user_interactions.instant_messaging.teams")

	var srv *server.Server
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))),
		gatewayOptions(),
		fx.Populate(&srv),
	)
	assert.Error(t, app.Err())
}

func TestGateway_MissingSlackCredentialsFailsStart(t *testing.T) {
	cfg := testGatewayConfig("https://slack.invalid/api/")
	cfg.Slack.SigningSecret = ""

	var srv *server.Server
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))),
		gatewayOptions(),
		fx.Populate(&srv),
	)
	require.NoError(t, app.Err())
	assert.Error(t, app.Start(context.Background()))
}

func TestSplitBackendPaths(t *testing.T) {
	t.Parallel()

	backends, others, err := splitBackendPaths([]string{pathSQLite, pathSlack, "BACKEND.Internal_Data_Processing.memory", pathAcknowledge})
	require.NoError(t, err)
	assert.Equal(t, []string{pathSQLite, "BACKEND.Internal_Data_Processing.memory"}, backends)
	assert.Equal(t, []string{pathSlack, pathAcknowledge}, others)

	_, _, err = splitBackendPaths([]string{"backend.only_two"})
	assert.Error(t, err)
}

func TestCatalogPaths(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		pathFileSystem,
		pathMemory,
		pathPostgres,
		pathSQLite,
		pathSlack,
		pathAcknowledge,
	}, newCatalog(&pluginEnv{}).Paths())
}
