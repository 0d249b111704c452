package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/lookupbot/internal/access"
	"github.com/flemzord/lookupbot/internal/activity"
	"github.com/flemzord/lookupbot/internal/broadcast"
	"github.com/flemzord/lookupbot/internal/channel/channeltest"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/lookup/lookuptest"
	"github.com/flemzord/lookupbot/internal/pipeline"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/internal/security/securitytest"
	"github.com/flemzord/lookupbot/internal/store"
	"github.com/flemzord/lookupbot/pkg/message"
)

const (
	adminID     = int64(1)
	memberID    = int64(42)
	outsiderID  = int64(7)
	cloneToken  = "1234567890:ABCdefGHIjklMNopQRstUVwxYZ"
	phoneResult = `{"success":true,"result":[{"mobile":"9889662072","name":"RAM KUMAR"}]}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memberChecker reports every listed user as a member of every group.
type memberChecker map[int64]bool

func (c memberChecker) MemberStatus(_ context.Context, _ string, userID int64) (string, error) {
	if c[userID] {
		return "member", nil
	}
	return access.StatusLeft, nil
}

// fakeStarter registers clones without running them.
type fakeStarter struct {
	reg *instance.Registry

	mu      sync.Mutex
	started []instance.Identity
}

func (s *fakeStarter) StartInstance(id instance.Identity) bool {
	if !s.reg.TryRegister(id) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, id)
	return true
}

func (s *fakeStarter) Registry() *instance.Registry { return s.reg }

type harness struct {
	r        *Router
	m        *channeltest.Messenger
	notifier *channeltest.Messenger
	admin    *channeltest.Messenger
	gw       *lookuptest.Gateway
	store    *store.Memory
	starter  *fakeStarter
	events   func() []security.AuditEvent
	probed   []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		m:        &channeltest.Messenger{},
		notifier: &channeltest.Messenger{},
		admin:    &channeltest.Messenger{},
		gw:       &lookuptest.Gateway{Phone: []byte(phoneResult)},
		store:    store.NewMemory(),
		starter:  &fakeStarter{reg: instance.NewRegistry()},
	}
	audit, events := securitytest.NewTestAuditLogger()
	h.events = events

	gate := access.NewGate(memberChecker{adminID: true, memberID: true}, []string{"@g1", "@g2"}, discardLogger(), nil)
	rec := activity.NewRecorder(activity.Config{
		Store:   h.store,
		Admin:   h.admin,
		AdminID: adminID,
		Notify:  true,
		Logger:  discardLogger(),
	})
	p := pipeline.New(pipeline.Config{
		Gate:     gate,
		Gateway:  h.gw,
		Audit:    audit,
		Activity: rec,
		Logger:   discardLogger(),
	})

	r, err := NewRouter(Config{
		AdminID:  adminID,
		Pipeline: p,
		Gate:     gate,
		Broadcast: broadcast.New(broadcast.Config{
			AdminID:   adminID,
			Sender:    h.notifier,
			Instances: h.starter.reg,
			Store:     h.store,
			Audit:     audit,
			Logger:    discardLogger(),
		}),
		Store: h.store,
		Probe: func(_ context.Context, token string) (string, error) {
			h.probed = append(h.probed, token)
			if strings.HasPrefix(token, "999") {
				return "", fmt.Errorf("getMe: %w", instance.ErrTokenRejected)
			}
			return "my_clone_bot", nil
		},
		Notifier: h.notifier,
		Audit:    audit,
		Activity: rec,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	r.Bind(h.starter)
	h.r = r
	return h
}

func text(from int64, s string) message.InboundMessage {
	return message.InboundMessage{
		Instance: "lookup_bot",
		Sender:   message.Sender{ID: from},
		ChatID:   from,
		Text:     s,
	}
}

func press(from int64, data string) message.InboundMessage {
	return message.InboundMessage{
		Instance: "lookup_bot",
		Sender:   message.Sender{ID: from},
		ChatID:   from,
		Callback: &message.Callback{ID: "cb1", Data: data, MessageID: 5},
	}
}

func lastSent(t *testing.T, m *channeltest.Messenger) message.OutboundMessage {
	t.Helper()
	sent := m.Sent()
	if len(sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return sent[len(sent)-1]
}

func hasEvent(events []security.AuditEvent, typ security.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	t.Parallel()

	gate := access.NewGate(memberChecker{}, []string{"@g1"}, discardLogger(), nil)
	p := pipeline.New(pipeline.Config{Logger: discardLogger()})

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"no pipeline", Config{Gate: gate, Store: store.NewMemory()}, ErrNoPipeline},
		{"no gate", Config{Pipeline: p, Store: store.NewMemory()}, ErrNoGate},
		{"no store", Config{Pipeline: p, Gate: gate}, ErrNoStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewRouter(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandlePrimary_PlainTextRunsLookup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.r.HandlePrimary(context.Background(), h.m, text(memberID, "9889662072"))

	if calls := h.gw.Calls(); len(calls) != 1 || calls[0] != "9889662072" {
		t.Fatalf("gateway calls = %v", calls)
	}
	if got := lastSent(t, h.m).Text; !strings.Contains(got, "RAM KUMAR") {
		t.Errorf("report = %q", got)
	}
}

func TestHandlePrimary_Start(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.r.HandlePrimary(context.Background(), h.m, text(outsiderID, "/start"))

	out := lastSent(t, h.m)
	if !strings.Contains(out.Text, "FORCE JOIN REQUIRED") || !strings.Contains(out.Text, "@g2") {
		t.Errorf("text = %q", out.Text)
	}
	if len(out.Keyboard) != 3 {
		t.Fatalf("keyboard rows = %d, want 3", len(out.Keyboard))
	}
	if got := out.Keyboard[2][0].CallbackData; got != ForceJoinCallback {
		t.Errorf("verify button = %q, want %q", got, ForceJoinCallback)
	}

	acts, err := h.store.RecentActivity(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 1 || acts[0].Action != activity.ActionStart || acts[0].UserID != outsiderID {
		t.Errorf("activity = %+v", acts)
	}
}

func TestHandlePrimary_StartNamesSender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		sender message.Sender
		want   string
	}{
		{sender: message.Sender{ID: outsiderID, FirstName: "Asha_K", Username: "asha"}, want: `User Asha\_K (7) started the bot`},
		{sender: message.Sender{ID: outsiderID, Username: "asha_k"}, want: `User @asha\_k (7) started the bot`},
		{sender: message.Sender{ID: outsiderID}, want: "User 7 (7) started the bot"},
	}
	for _, tt := range tests {
		h := newHarness(t)
		msg := text(outsiderID, "/start")
		msg.Sender = tt.sender
		h.r.HandlePrimary(context.Background(), h.m, msg)

		out := lastSent(t, h.admin).Text
		if !strings.Contains(out, tt.want) {
			t.Errorf("admin log = %q, want %q", out, tt.want)
		}
		channeltest.RequireParsableMarkdown(t, out)
	}
}

func TestHandlePrimary_Help(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.r.HandlePrimary(context.Background(), h.m, text(outsiderID, "/help@lookup_bot"))

	if got := lastSent(t, h.m).Text; got != HelpText {
		t.Errorf("text = %q", got)
	}
}

func TestHandlePrimary_Check(t *testing.T) {
	t.Parallel()

	t.Run("member", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.r.HandlePrimary(context.Background(), h.m, text(memberID, "/check"))
		if got := lastSent(t, h.m).Text; got != AccessGrantedText {
			t.Errorf("text = %q", got)
		}
	})

	t.Run("outsider", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.r.HandlePrimary(context.Background(), h.m, text(outsiderID, "/check"))
		out := lastSent(t, h.m)
		if !strings.Contains(out.Text, "Access Denied") || len(out.Keyboard) == 0 {
			t.Errorf("reply = %+v", out)
		}
		if !hasEvent(h.events(), security.EventAccessDenied) {
			t.Error("access_denied not audited")
		}
	})
}

func TestHandlePrimary_Aadhar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		wantReply string
		wantCall  bool
	}{
		{"no argument", "/aadhar", AadharUsageText, false},
		{"letters", "/aadhar 65801445120x", pipeline.NonNumericText, false},
		{"too short", "/aadhar 1234", AadharUsageText, false},
		{"valid", "/aadhar 658014451208", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.r.HandlePrimary(context.Background(), h.m, text(memberID, tt.text))

			calls := h.gw.Calls()
			if tt.wantCall {
				if len(calls) != 1 || calls[0] != "658014451208" {
					t.Errorf("gateway calls = %v", calls)
				}
				return
			}
			if len(calls) != 0 {
				t.Errorf("gateway called with %v", calls)
			}
			if got := lastSent(t, h.m).Text; got != tt.wantReply {
				t.Errorf("reply = %q, want %q", got, tt.wantReply)
			}
		})
	}
}

func TestHandlePrimary_Clone(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.r.HandlePrimary(ctx, h.m, text(memberID, "/clone "+cloneToken))

	out := lastSent(t, h.m).Text
	if !strings.Contains(out, `@my\_clone\_bot`) || strings.Contains(out, cloneToken) {
		t.Errorf("reply = %q", out)
	}
	channeltest.RequireParsableMarkdown(t, out)
	clones, err := h.store.ListClones(ctx, memberID)
	if err != nil {
		t.Fatal(err)
	}
	if len(clones) != 1 || clones[0].Name != "my_clone_bot" {
		t.Fatalf("stored clones = %+v", clones)
	}
	if len(h.starter.started) != 1 || h.starter.started[0].OwnerID != memberID {
		t.Errorf("started = %+v", h.starter.started)
	}
	if !hasEvent(h.events(), security.EventCloneCreate) {
		t.Error("clone_create not audited")
	}

	// A second /clone with the same token finds it live.
	h.r.HandlePrimary(ctx, h.m, text(memberID, "/clone "+cloneToken))
	dup := lastSent(t, h.m).Text
	if dup != CloneAlreadyRunningText("my_clone_bot") {
		t.Errorf("duplicate reply = %q", dup)
	}
	channeltest.RequireParsableMarkdown(t, dup)
	if len(h.starter.started) != 1 {
		t.Errorf("started twice: %+v", h.starter.started)
	}
}

func TestHandlePrimary_CloneRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   int64
		text   string
		want   string
		probed bool
	}{
		{"outsider", outsiderID, "/clone " + cloneToken, "Access Denied", false},
		{"no token", memberID, "/clone", CloneUsageText, false},
		{"malformed token", memberID, "/clone not-a-token", InvalidTokenText, false},
		{"rejected token", memberID, "/clone 9990000000:ABCdefGHIjklMNopQRstUVwxYZ", "rejected by Telegram", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.r.HandlePrimary(context.Background(), h.m, text(tt.from, tt.text))

			if got := lastSent(t, h.m).Text; !strings.Contains(got, tt.want) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.want)
			}
			if (len(h.probed) > 0) != tt.probed {
				t.Errorf("probed = %v", h.probed)
			}
			if len(h.starter.started) != 0 {
				t.Errorf("started = %+v", h.starter.started)
			}
		})
	}
}

func TestHandlePrimary_Broadcast(t *testing.T) {
	t.Parallel()

	t.Run("non-admin", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.starter.reg.TryRegister(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "c"})

		h.r.HandlePrimary(context.Background(), h.m, text(memberID, "/broadcast hello"))

		if got := lastSent(t, h.m).Text; got != AdminOnlyText {
			t.Errorf("reply = %q", got)
		}
		if n := len(h.notifier.Sent()); n != 0 {
			t.Errorf("owners notified %d times", n)
		}
		if !hasEvent(h.events(), security.EventAdminRejected) {
			t.Error("admin_rejected not audited")
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.r.HandlePrimary(context.Background(), h.m, text(adminID, "/broadcast"))
		if got := lastSent(t, h.m).Text; got != BroadcastUsageText {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("delivered", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.starter.reg.TryRegister(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "c"})

		h.r.HandlePrimary(context.Background(), h.m, text(adminID, "/broadcast hello owners"))

		sent := h.notifier.Sent()
		if len(sent) != 1 || sent[0].ChatID != memberID || sent[0].Text != broadcast.Format("hello owners") {
			t.Fatalf("owner messages = %+v", sent)
		}
		if got := lastSent(t, h.m).Text; !strings.Contains(got, "Sent to: 1") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("markdown in text", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		h.starter.reg.TryRegister(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "lookup_bot"})

		h.r.HandlePrimary(context.Background(), h.m, text(adminID, "/broadcast update file_v2 via *_bot now"))

		sent := h.notifier.Sent()
		if len(sent) != 1 {
			t.Fatalf("owner messages = %+v", sent)
		}
		if !strings.Contains(sent[0].Text, `file\_v2 via \*\_bot`) {
			t.Errorf("broadcast = %q", sent[0].Text)
		}
		channeltest.RequireParsableMarkdown(t, sent[0].Text)
	})
}

func TestHandlePrimary_Stats(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.AddClone(ctx, store.Clone{Token: cloneToken, OwnerID: memberID, Name: "c"}); err != nil {
		t.Fatal(err)
	}
	h.starter.reg.TryRegister(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "c"})

	h.r.HandlePrimary(ctx, h.m, text(memberID, "/stats"))
	if got := lastSent(t, h.m).Text; got != AdminOnlyText {
		t.Errorf("non-admin reply = %q", got)
	}

	h.r.HandlePrimary(ctx, h.m, text(adminID, "/stats"))
	got := lastSent(t, h.m).Text
	for _, want := range []string{"Total Clones: 1", "Starting Instances: 1", "Required Channels: 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("stats missing %q:\n%s", want, got)
		}
	}
}

func TestHandleCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from int64
		data string
		want string
	}{
		{"verify member", memberID, access.CheckMembershipCallback, AccessGrantedText},
		{"verify outsider", outsiderID, access.CheckMembershipCallback, "Access Denied"},
		{"force join member", memberID, ForceJoinCallback, "Welcome to Multi-Service Lookup Bot"},
		{"force join outsider", outsiderID, ForceJoinCallback, "haven't joined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.r.HandlePrimary(context.Background(), h.m, press(tt.from, tt.data))

			if n := h.m.Count(channeltest.OpAnswer); n != 1 {
				t.Errorf("answers = %d, want 1", n)
			}
			var edited *message.OutboundMessage
			for _, c := range h.m.Calls() {
				if c.Op == channeltest.OpEdit {
					edited = &c.Msg
					if c.MessageID != 5 {
						t.Errorf("edited message %d, want 5", c.MessageID)
					}
				}
			}
			if edited == nil {
				t.Fatal("prompt was not edited")
			}
			if !strings.Contains(edited.Text, tt.want) {
				t.Errorf("edited text = %q, want it to contain %q", edited.Text, tt.want)
			}
		})
	}
}

func TestHandleClone(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	h.r.HandleClone(ctx, h.m, text(memberID, "/start"))
	if got := lastSent(t, h.m).Text; got != CloneWelcomeText {
		t.Errorf("start reply = %q", got)
	}

	before := len(h.m.Sent())
	h.r.HandleClone(ctx, h.m, text(adminID, "/broadcast hi"))
	h.r.HandleClone(ctx, h.m, text(memberID, "/clone "+cloneToken))
	if n := len(h.m.Sent()); n != before {
		t.Errorf("clone answered admin commands: %d new messages", n-before)
	}

	h.r.HandleClone(ctx, h.m, text(memberID, "9889662072"))
	if calls := h.gw.Calls(); len(calls) != 1 {
		t.Errorf("gateway calls = %v", calls)
	}
}

func TestOnInstanceFailure_NotifiesOwner(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.r.OnInstanceFailure(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "c"}, instance.ErrConflict)

	out := lastSent(t, h.notifier)
	if out.ChatID != memberID || !strings.Contains(out.Text, "another process") {
		t.Errorf("notice = %+v", out)
	}
	if !hasEvent(h.events(), security.EventCloneFailed) {
		t.Error("clone_failed not audited")
	}
}

func TestOnInstanceFailure_EscapesBotName(t *testing.T) {
	t.Parallel()

	for _, err := range []error{instance.ErrConflict, instance.ErrTokenRejected, errors.New("dial tcp: refused")} {
		h := newHarness(t)
		h.r.OnInstanceFailure(instance.Identity{Token: cloneToken, OwnerID: memberID, Name: "lookup_bot"}, err)

		out := lastSent(t, h.notifier).Text
		if !strings.Contains(out, `@lookup\_bot`) {
			t.Errorf("%v: notice = %q", err, out)
		}
		channeltest.RequireParsableMarkdown(t, out)
	}
}

func TestMessageTexts_ParsableMarkdown(t *testing.T) {
	t.Parallel()

	for name, got := range map[string]string{
		"created":    CloneCreatedText("lookup_bot", cloneToken, memberID),
		"running":    CloneAlreadyRunningText("*_bot"),
		"failed":     CloneFailedText("a_b_c_bot", instance.ErrConflict),
		"force join": ForceJoinText([]string{"@dev_chat", "@ops_team"}),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			channeltest.RequireParsableMarkdown(t, got)
		})
	}
}

func TestCloneErrorText(t *testing.T) {
	t.Parallel()

	if got := CloneErrorText(fmt.Errorf("x: %w", instance.ErrConflict)); !strings.Contains(got, "already being used") {
		t.Errorf("conflict text = %q", got)
	}
	if got := CloneErrorText(errors.New("timeout")); strings.Contains(got, "timeout") {
		t.Errorf("upstream detail leaked: %q", got)
	}
}

func TestStatsText_TruncatesUptime(t *testing.T) {
	t.Parallel()

	got := StatsText(StatsView{Uptime: 90*time.Second + 300*time.Millisecond})
	if !strings.Contains(got, "Uptime: 1m30s") {
		t.Errorf("stats = %q", got)
	}
}
