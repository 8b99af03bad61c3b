package plugin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/chatrelay/chatrelay/internal/plugin"
)

type testPlugin struct {
	name    string
	initErr error
	inits   *[]string
}

func (p *testPlugin) Name() string { return p.name }

func (p *testPlugin) Initialize(ctx context.Context) error {
	if p.inits != nil {
		*p.inits = append(*p.inits, p.name)
	}
	return p.initErr
}

type stopPlugin struct {
	testPlugin
	stopErr error
	stops   *[]string
}

func (p *stopPlugin) Stop(ctx context.Context) error {
	*p.stops = append(*p.stops, p.name)
	return p.stopErr
}

type routePlugin struct {
	testPlugin
	path string
}

func (p *routePlugin) RoutePath() string               { return p.path }
func (p *routePlugin) RouteMethods() []string          { return []string{"POST"} }
func (p *routePlugin) HandleRequest(echo.Context) error { return nil }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()
	reg := plugin.NewRegistry()
	reg.MustRegister("backend", "internal_data_processing", &testPlugin{name: "file_system"})
	reg.MustRegister(" Backend ", "INTERNAL_DATA_PROCESSING", &testPlugin{name: "memory"})

	items := reg.Lookup("BACKEND", "internal_data_processing")
	if len(items) != 2 {
		t.Fatalf("Lookup() returned %d plugins, want 2", len(items))
	}
	if items[0].Name() != "file_system" || items[1].Name() != "memory" {
		t.Fatalf("Lookup() order = [%s %s], want [file_system memory]", items[0].Name(), items[1].Name())
	}
	if got := reg.Lookup("BACKEND", "unknown"); got != nil {
		t.Fatalf("Lookup(unknown subcategory) = %v, want nil", got)
	}
	if got := reg.Lookup("unknown", "internal_data_processing"); got != nil {
		t.Fatalf("Lookup(unknown category) = %v, want nil", got)
	}
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	t.Parallel()
	reg := plugin.NewRegistry()
	reg.MustRegister("backend", "internal_data_processing", &testPlugin{name: "file_system"})
	err := reg.Register("backend", "internal_data_processing", &testPlugin{name: "file_system"})
	if err == nil {
		t.Fatal("Register(duplicate) error = nil, want error")
	}
	// Same name in another subcategory is fine.
	if err := reg.Register("backend", "other", &testPlugin{name: "file_system"}); err != nil {
		t.Fatalf("Register(other subcategory) error = %v", err)
	}
}

func TestRegistry_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	reg := plugin.NewRegistry()
	if err := reg.Register("backend", "sub", nil); err == nil {
		t.Fatal("Register(nil) error = nil, want error")
	}
	if err := reg.Register(" ", "sub", &testPlugin{name: "x"}); err == nil {
		t.Fatal("Register(empty category) error = nil, want error")
	}
	if err := reg.Register("backend", "sub", &testPlugin{name: ""}); err == nil {
		t.Fatal("Register(empty name) error = nil, want error")
	}
}

func TestRegistry_Category(t *testing.T) {
	t.Parallel()
	reg := plugin.NewRegistry()
	reg.MustRegister("user_interactions", "instant_messaging", &testPlugin{name: "slack"})
	reg.MustRegister("user_interactions", "custom_api", &testPlugin{name: "rest"})

	subs := reg.Category("USER_INTERACTIONS")
	if len(subs) != 2 {
		t.Fatalf("Category() returned %d subcategories, want 2", len(subs))
	}
	if len(subs["INSTANT_MESSAGING"]) != 1 {
		t.Fatalf("Category()[INSTANT_MESSAGING] = %v", subs["INSTANT_MESSAGING"])
	}
	if reg.Category("missing") != nil {
		t.Fatal("Category(missing) should be nil")
	}
	cats := reg.Categories()
	if len(cats) != 1 || cats[0] != "USER_INTERACTIONS" {
		t.Fatalf("Categories() = %v", cats)
	}
}

func TestRegistry_InitializeAllInOrder(t *testing.T) {
	t.Parallel()
	var inits []string
	reg := plugin.NewRegistry()
	reg.MustRegister("backend", "idp", &testPlugin{name: "a", inits: &inits})
	reg.MustRegister("user_interactions", "im", &testPlugin{name: "b", inits: &inits})
	reg.MustRegister("backend", "idp", &testPlugin{name: "c", inits: &inits})

	if err := reg.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll() error = %v", err)
	}
	if len(inits) != 3 || inits[0] != "a" || inits[1] != "b" || inits[2] != "c" {
		t.Fatalf("initialize order = %v, want [a b c]", inits)
	}
}

func TestRegistry_InitializeAllStopsOnError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var inits []string
	reg := plugin.NewRegistry()
	reg.MustRegister("backend", "idp", &testPlugin{name: "a", inits: &inits, initErr: boom})
	reg.MustRegister("backend", "idp", &testPlugin{name: "b", inits: &inits})

	err := reg.InitializeAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("InitializeAll() error = %v, want %v", err, boom)
	}
	if len(inits) != 1 {
		t.Fatalf("initialized %v, want only [a]", inits)
	}
}

func TestRegistry_Routes(t *testing.T) {
	t.Parallel()
	reg := plugin.NewRegistry()
	reg.MustRegister("user_interactions", "instant_messaging", &routePlugin{testPlugin: testPlugin{name: "slack"}, path: "/slack/events"})
	reg.MustRegister("user_interactions", "instant_messaging", &testPlugin{name: "noroute"})
	reg.MustRegister("backend", "idp", &routePlugin{testPlugin: testPlugin{name: "hidden"}, path: "/hidden"})

	routes := reg.Routes()
	if len(routes) != 1 {
		t.Fatalf("Routes() returned %d, want 1", len(routes))
	}
	if routes[0].RoutePath() != "/slack/events" {
		t.Fatalf("Routes()[0].RoutePath() = %q", routes[0].RoutePath())
	}
}

func TestRegistry_StopAllReverseOrder(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	var stops []string
	reg := plugin.NewRegistry()
	reg.MustRegister("backend", "idp", &stopPlugin{testPlugin: testPlugin{name: "a"}, stops: &stops})
	reg.MustRegister("backend", "idp", &testPlugin{name: "plain"})
	reg.MustRegister("user_interactions", "im", &stopPlugin{testPlugin: testPlugin{name: "b"}, stops: &stops, stopErr: boom})

	err := reg.StopAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("StopAll() error = %v, want %v", err, boom)
	}
	if len(stops) != 2 || stops[0] != "b" || stops[1] != "a" {
		t.Fatalf("stop order = %v, want [b a]", stops)
	}
}
