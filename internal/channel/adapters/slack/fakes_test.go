package slack

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/chatrelay/chatrelay/internal/channel"
	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/memory"
)

const (
	testSecret  = "test-signing-secret"
	testBotUser = "UBOT"
	testChannel = "C1"
	testEventTS = "1718000000.000100"
)

var testEventTime = time.Unix(1718000000, 100_000)

type postedMessage struct {
	channel string
	values  url.Values
}

func (p postedMessage) text() string     { return p.values.Get("text") }
func (p postedMessage) threadTS() string { return p.values.Get("thread_ts") }
func (p postedMessage) blocks() string   { return p.values.Get("blocks") }

type fakeAPI struct {
	mu sync.Mutex

	posts   []postedMessage
	postErr error

	reactions   []string
	reactionErr error

	permalink    string
	permalinkErr error
	replies      []slack.Message

	history      []slack.Message
	historyErr   error
	historyCalls int
	// historyDelay hides history from the first historyDelay searches.
	historyDelay int

	uploads   []slack.UploadFileV2Parameters
	uploadErr error

	user    *slack.User
	userErr error
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", "", f.postErr
	}
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.posts = append(f.posts, postedMessage{channel: channelID, values: values})
	return channelID, strconv.Itoa(len(f.posts)), nil
}

func (f *fakeAPI) AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, "add:"+name+":"+item.Channel+":"+item.Timestamp)
	return nil
}

func (f *fakeAPI) RemoveReactionContext(ctx context.Context, name string, item slack.ItemRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reactionErr != nil {
		return f.reactionErr
	}
	f.reactions = append(f.reactions, "remove:"+name+":"+item.Channel+":"+item.Timestamp)
	return nil
}

func (f *fakeAPI) GetPermalinkContext(ctx context.Context, params *slack.PermalinkParameters) (string, error) {
	if f.permalinkErr != nil {
		return "", f.permalinkErr
	}
	return f.permalink, nil
}

func (f *fakeAPI) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	return f.replies, false, "", nil
}

func (f *fakeAPI) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	resp := &slack.GetConversationHistoryResponse{}
	if f.historyCalls > f.historyDelay {
		resp.Messages = f.history
	}
	return resp, nil
}

func (f *fakeAPI) UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, params)
	return &slack.FileSummary{ID: "F1", Title: params.Title}, nil
}

func (f *fakeAPI) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, errors.New("user_not_found")
	}
	return f.user, nil
}

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

type processCall struct {
	event  channel.NotificationEvent
	origin string
	plugin string
}

type fakeBehaviors struct {
	mu    sync.Mutex
	calls []processCall
	err   error
	// block, when set, holds Process until it is closed.
	block chan struct{}
}

func (b *fakeBehaviors) Process(ctx context.Context, event channel.NotificationEvent, origin, pluginName string) error {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, processCall{event: event, origin: origin, plugin: pluginName})
	return b.err
}

type testEnv struct {
	adapter   *Adapter
	api       *fakeAPI
	clock     *fakeClock
	store     *datastore.GatewayStore
	behaviors *fakeBehaviors
	logs      *bytes.Buffer
}

func testConfig() Config {
	return Config{
		BotToken:           "xoxb-test",
		SigningSecret:      testSecret,
		BotUserID:          testBotUser,
		AuthorizedChannels: []string{testChannel},
		FeedbackChannel:    "CFEEDBACK",
		FeedbackBotID:      "UFEEDBOT",
		BehaviorPlugin:     "default_behavior",
		ProcessInline:      true,
	}
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	env := &testEnv{
		api:       &fakeAPI{user: &slack.User{ID: "U1", Name: "jdoe", RealName: "Jane Doe", Profile: slack.UserProfile{Email: "jane@example.com"}}},
		clock:     &fakeClock{now: testEventTime.Add(10 * time.Second)},
		store:     datastore.NewStore("memory", datastore.Containers{}, memory.New()),
		behaviors: &fakeBehaviors{},
		logs:      &bytes.Buffer{},
	}
	log := slog.New(slog.NewTextHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env.adapter = NewAdapter(log, cfg, env.store, env.behaviors, WithAPI(env.api), WithClock(env.clock))
	if err := env.adapter.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}
	return env
}

func testEvent() channel.NotificationEvent {
	return channel.NotificationEvent{
		Timestamp:  testEventTS,
		ChannelID:  testChannel,
		ThreadID:   "1717999000.000200",
		ResponseID: testEventTS,
		UserID:     "U1",
		Origin:     Type,
	}
}

func (b *fakeBehaviors) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}
