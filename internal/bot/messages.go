package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/lookupbot/internal/broadcast"
	"github.com/flemzord/lookupbot/internal/instance"
	"github.com/flemzord/lookupbot/internal/security"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Fixed replies.
const (
	WelcomeText = "🎉 *Welcome to Multi-Service Lookup Bot!*\n\n" +
		"📱 *Services Available:*\n" +
		"• Phone number lookup\n" +
		"• Aadhar family info\n" +
		"• Clone bot creation\n\n" +
		"🔍 *How to use:*\n" +
		"Simply send:\n" +
		"• 10-digit phone number\n" +
		"• 12-digit Aadhar number\n\n" +
		"⚡ *Examples:*\n" +
		"`9889662072` - Phone lookup\n" +
		"`658014451208` - Aadhar lookup\n\n" +
		"💫 *Commands:*\n" +
		"/aadhar - Aadhar lookup\n" +
		"/clone - Create your own bot\n" +
		"/help - Show help guide"

	HelpText = "🆘 *Bot Help Guide*\n\n" +
		"📱 *Phone Lookup:*\n" +
		"Simply send any 10-digit phone number\n" +
		"*Example:* `9889662072`\n\n" +
		"🆔 *Aadhar Family Info:*\n" +
		"Send any 12-digit Aadhar number\n" +
		"Or use: `/aadhar 658014451208`\n\n" +
		"🤖 *Bot Commands:*\n" +
		"`/start` - Start the bot\n" +
		"`/aadhar` - Aadhar lookup\n" +
		"`/clone` - Create clone bot\n" +
		"`/check` - Verify membership\n" +
		"`/stats` - Admin statistics\n" +
		"`/broadcast` - Admin broadcast\n\n" +
		"⚡ *Auto-detection:*\n" +
		"Just send 10-digit (phone) or 12-digit (Aadhar) number!"

	CloneWelcomeText = "👋 *Welcome to Clone Bot!*\n\n" +
		"This is a mirrored bot from the main Lookup service.\n\n" +
		"Send me:\n" +
		"• 10-digit phone number\n" +
		"• 12-digit Aadhar number\n\n" +
		"For automatic lookup!"

	CloneHelpText = "🆘 *Clone Bot Help*\n\n" +
		"📱 Send a 10-digit phone number for a phone lookup.\n" +
		"🆔 Send a 12-digit Aadhar number for family info."

	AccessGrantedText = "✅ *Access Granted!* You're a member of all required channels."

	NotJoinedText = "❌ *You haven't joined all channels yet!*\n\n" +
		"Please join every channel and click 'I've Joined' again."

	AadharUsageText = "🆔 *Aadhar Family Lookup*\n\n" +
		"Usage: `/aadhar 658014451208`\n\n" +
		"Or simply send any 12-digit Aadhar number directly!"

	CloneUsageText = "🤖 *Bot Clone System*\n\n" +
		"To create your own clone bot, use:\n" +
		"`/clone YOUR_BOT_TOKEN`\n\n" +
		"*Example:*\n" +
		"`/clone 1234567890:ABCdefGHIjklMNopQRstUVwxYZ`\n\n" +
		"Get your bot token from @BotFather"

	InvalidTokenText = "❌ *Invalid bot token format!*"

	BroadcastUsageText = "📢 *Broadcast System*\n\n" +
		"Usage: `/broadcast your message here`\n\n" +
		"This will send the message to every clone bot owner."

	AdminOnlyText = "❌ *Admin only command!*"
)

// ForceJoinText is the /start prompt listing the groups to join.
func ForceJoinText(groups []string) string {
	var b strings.Builder
	b.WriteString("🔒 *FORCE JOIN REQUIRED* 🔒\n\n")
	b.WriteString("To use this bot, you must join our official channels first!\n\n")
	b.WriteString("📢 Channels to join:\n")
	for _, g := range groups {
		b.WriteString("• " + message.EscapeMarkdown(g) + "\n")
	}
	b.WriteString("\nClick the buttons below to join, then click 'I've Joined' to verify.")
	return b.String()
}

// CloneCreatedText confirms a new clone. Only a prefix of the token is shown.
func CloneCreatedText(name, token string, ownerID int64) string {
	return fmt.Sprintf("🎉 *Clone Bot Created Successfully!*\n\n"+
		"• Bot: @%s\n"+
		"• Token: `%s`\n"+
		"• Owner: %d\n\n"+
		"Your bot is starting and will receive all broadcasts!\n\n"+
		"🔗 *Bot Link:* https://t.me/%s",
		message.EscapeMarkdown(name), security.MaskToken(token), ownerID, message.EscapeMarkdown(name))
}

// CloneAlreadyRunningText answers /clone for a token that is already live.
// Names stay outside bold spans: legacy Markdown only honours escapes there.
func CloneAlreadyRunningText(name string) string {
	return fmt.Sprintf("♻️ *Clone already running:* @%s", message.EscapeMarkdown(name))
}

// CloneErrorText explains a failed /clone without leaking upstream detail.
func CloneErrorText(err error) string {
	reason := "Please try again later."
	switch {
	case errors.Is(err, instance.ErrConflict):
		reason = "Bot token is already being used by another running instance. Please stop other instances first."
	case errors.Is(err, instance.ErrTokenRejected):
		reason = "The token was rejected by Telegram. Check it with @BotFather."
	}
	return "❌ *Error creating clone:* " + reason
}

// CloneFailedText tells an owner their clone stopped.
func CloneFailedText(name string, err error) string {
	text := fmt.Sprintf("⚠️ *Your clone bot could not start:* @%s\n\n", message.EscapeMarkdown(name))
	if errors.Is(err, instance.ErrConflict) {
		return text + "Its token is being polled by another process. Stop the other instance, then run /clone again."
	}
	return text + "Run /clone again later."
}

// BroadcastSentText reports a finished broadcast to the admin.
func BroadcastSentText(res broadcast.Result, now time.Time) string {
	return fmt.Sprintf("📢 *Broadcast Sent!*\n\n"+
		"• Message ID: %d\n"+
		"• Sent to: %d clone owners\n"+
		"• Failed: %d\n"+
		"• Time: %s",
		res.ID, res.Delivered, res.Failed, now.Format(time.DateTime))
}

// StatsView is the data shown by /stats.
type StatsView struct {
	TotalClones int
	Running     int
	Starting    int
	Failed      int
	AdminID     int64
	Groups      int
	Uptime      time.Duration
}

// StatsText renders /stats.
func StatsText(v StatsView) string {
	return fmt.Sprintf("📊 *Bot Statistics*\n\n"+
		"• Total Clones: %d\n"+
		"• Running Instances: %d\n"+
		"• Starting Instances: %d\n"+
		"• Failed Instances: %d\n"+
		"• Admin ID: %d\n"+
		"• Required Channels: %d\n"+
		"• Services: Phone + Aadhar Lookup\n"+
		"• Uptime: %s\n\n"+
		"🔄 *System Status:* ✅ Operational",
		v.TotalClones, v.Running, v.Starting, v.Failed, v.AdminID, v.Groups, v.Uptime.Truncate(time.Second))
}
