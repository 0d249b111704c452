// Package access decides whether a user may use lookups, based on their
// membership in a fixed set of chat groups.
package access

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/flemzord/lookupbot/internal/metrics"
	"github.com/flemzord/lookupbot/pkg/message"
)

// ErrNotMember is returned when a user is missing from a required group.
var ErrNotMember = errors.New("access: user is not a member of every required group")

// CheckMembershipCallback is the callback data of the "I've joined" button.
const CheckMembershipCallback = "check_membership"

// Statuses that count as not being a member.
const (
	StatusLeft   = "left"
	StatusKicked = "kicked"
)

// MembershipChecker queries the platform for a user's status in a group.
type MembershipChecker interface {
	MemberStatus(ctx context.Context, group string, userID int64) (string, error)
}

// Gate answers membership questions. It never caches an answer.
type Gate struct {
	checker MembershipChecker
	groups  []string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewGate creates a gate requiring membership in every group.
func NewGate(checker MembershipChecker, groups []string, logger *slog.Logger, m *metrics.Metrics) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		checker: checker,
		groups:  append([]string(nil), groups...),
		logger:  logger,
		metrics: m,
	}
}

// Groups returns the required groups.
func (g *Gate) Groups() []string {
	return append([]string(nil), g.groups...)
}

// IsMember reports whether userID belongs to every group. Any lookup error
// counts as non-membership.
func (g *Gate) IsMember(ctx context.Context, userID int64, groups []string) bool {
	for _, group := range groups {
		status, err := g.checker.MemberStatus(ctx, group, userID)
		if err != nil {
			g.logger.Warn("membership check failed", "group", group, "user_id", userID, "error", err)
			return false
		}
		if status == StatusLeft || status == StatusKicked {
			return false
		}
	}
	return true
}

// Check runs IsMember against the configured groups.
func (g *Gate) Check(ctx context.Context, userID int64) error {
	ok := g.IsMember(ctx, userID, g.groups)
	g.metrics.ObserveAccess(ok)
	if !ok {
		return ErrNotMember
	}
	return nil
}

// JoinLink returns the public join URL of a group handle like "@name".
func JoinLink(group string) string {
	return "https://t.me/" + strings.TrimPrefix(group, "@")
}

// JoinKeyboard builds the remediation keyboard: one join button per group
// and a final button that re-runs the check.
func (g *Gate) JoinKeyboard() message.Keyboard {
	kb := make(message.Keyboard, 0, len(g.groups)+1)
	for i, group := range g.groups {
		kb = append(kb, []message.Button{{
			Text: joinLabel(i, group),
			URL:  JoinLink(group),
		}})
	}
	kb = append(kb, []message.Button{{
		Text:         "✅ I've Joined",
		CallbackData: CheckMembershipCallback,
	}})
	return kb
}

func joinLabel(i int, group string) string {
	if i == 0 {
		return "📢 Join Main Channel"
	}
	return "🔍 Join " + strings.TrimPrefix(group, "@")
}
