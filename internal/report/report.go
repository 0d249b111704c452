// Package report renders lookup payloads into chat-ready Markdown.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flemzord/lookupbot/internal/lookup"
	"github.com/flemzord/lookupbot/pkg/message"
)

// Fixed replies used when a payload carries no usable record.
const (
	NoPhoneData      = "❌ *No data found for this phone number.*"
	NoNationalIDData = "❌ *No family data found for this Aadhar number.*"
)

const (
	boxTop    = "┌─────────────────────────────\n"
	boxBottom = "└─────────────────────────────\n\n"
	missing   = "N/A"
)

// Renderer turns lookup payloads into reports.
type Renderer struct {
	// Source is credited in the report footer.
	Source string
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// NewRenderer creates a renderer crediting source.
func NewRenderer(source string) *Renderer {
	return &Renderer{Source: source, Now: time.Now}
}

// Render formats payload for kind. found is false when the payload holds
// no record, in which case the fixed no-data reply is returned.
func (r *Renderer) Render(kind lookup.Kind, payload json.RawMessage) (text string, found bool) {
	switch kind {
	case lookup.KindPhone:
		return r.phone(payload)
	case lookup.KindNationalID:
		return r.nationalID(payload)
	default:
		return "❌ *Unsupported lookup.*", false
	}
}

func (r *Renderer) phone(payload json.RawMessage) (string, bool) {
	var doc struct {
		Success bool             `json:"success"`
		Result  []map[string]any `json:"result"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil || !doc.Success || len(doc.Result) == 0 {
		return NoPhoneData, false
	}
	rec := doc.Result[0]

	var b strings.Builder
	b.WriteString("📋 *PHONE NUMBER REPORT* 📋\n\n")

	section(&b, "🔍 *Basic Information*",
		fmt.Sprintf("📱 *Number:* `%s`", code(rec, "mobile")),
		"👤 *Name:* "+field(rec, "name"),
		"👨‍👦 *Father:* "+field(rec, "father_name"),
	)
	section(&b, "🏢 *Service Details*",
		"📡 *Circle:* "+field(rec, "circle"),
		"🆔 *ID Number:* "+field(rec, "id_number"),
	)
	if parts := addressParts(rec); len(parts) > 0 {
		lines := make([]string, len(parts))
		for i, p := range parts {
			lines[i] = "📍 " + escape(p)
		}
		section(&b, "🏠 *Address Information*", lines...)
	}
	section(&b, "📞 *Contact Details*",
		"📞 *Alt Mobile:* "+field(rec, "alt_mobile"),
		"📧 *Email:* "+field(rec, "email"),
	)
	r.footer(&b)
	return b.String(), true
}

type member struct {
	Name     any    `json:"memberName"`
	Relation string `json:"releationship_name"`
	ID       any    `json:"memberId"`
}

func (r *Renderer) nationalID(payload json.RawMessage) (string, bool) {
	var rec map[string]any
	if err := json.Unmarshal(payload, &rec); err != nil || len(rec) == 0 {
		return NoNationalIDData, false
	}
	if _, failed := rec["error"]; failed {
		return NoNationalIDData, false
	}

	var b strings.Builder
	b.WriteString("👨‍👩‍👧‍👦 *AADHAR FAMILY REPORT* 👨‍👩‍👧‍👦\n\n")

	section(&b, "🏠 *Family Information*",
		"🆔 *RC ID:* "+field(rec, "rcId"),
		"🏠 *Scheme:* "+field(rec, "schemeName"),
		"📍 *District:* "+field(rec, "homeDistName"),
		"🏛️ *State:* "+field(rec, "homeStateName"),
	)
	if addr := text(rec, "address"); addr != "" {
		section(&b, "📍 *Family Address*", escape(addr))
	}

	var wrapper struct {
		Members []member `json:"memberDetailsList"`
	}
	_ = json.Unmarshal(payload, &wrapper)
	if n := len(wrapper.Members); n > 0 {
		lines := make([]string, 0, 2*n)
		for _, m := range wrapper.Members {
			lines = append(lines,
				fmt.Sprintf("%s *%s*", relationEmoji(m.Relation), escape(orMissing(m.Name))),
				fmt.Sprintf("  └─ %s (%s)", escape(m.Relation), escape(orMissing(m.ID))),
			)
		}
		section(&b, fmt.Sprintf("👥 *Family Members (%d)*", n), lines...)
	}

	section(&b, "📊 *Additional Details*",
		"✅ *UID Status:* "+field(rec, "dup_uid_status"),
		"✅ *ONORC Allowed:* "+field(rec, "allowed_onorc"),
		"🆔 *FPS ID:* "+field(rec, "fpsId"),
	)
	r.footer(&b)
	return b.String(), true
}

func (r *Renderer) footer(b *strings.Builder) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if r.Source != "" {
		fmt.Fprintf(b, "🔗 *Data Source:* %s\n", escape(r.Source))
	}
	fmt.Fprintf(b, "⏰ *Generated:* %s", now().Format(time.DateTime))
}

func section(b *strings.Builder, title string, lines ...string) {
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(boxTop)
	for _, l := range lines {
		b.WriteString("│ ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(boxBottom)
}

func relationEmoji(relation string) string {
	switch relation {
	case "SELF":
		return "👑"
	case "WIFE", "HUSBAND":
		return "💑"
	case "SON":
		return "👦"
	case "DAUGHTER":
		return "👧"
	case "FATHER":
		return "👨"
	case "MOTHER":
		return "👩"
	default:
		return "👤"
	}
}

// addressParts splits the "!"-separated address, dropping blank and NA parts.
func addressParts(rec map[string]any) []string {
	addr := text(rec, "address")
	if addr == "" || addr == missing {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(addr, "!") {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "NA") {
			continue
		}
		parts = append(parts, p)
	}
	return parts
}

// text returns the value under key as a string, or "" when absent or null.
func text(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func field(rec map[string]any, key string) string {
	v := text(rec, key)
	if v == "" {
		return missing
	}
	return escape(v)
}

// code returns a value fit for a Markdown code span.
func code(rec map[string]any, key string) string {
	v := text(rec, key)
	if v == "" {
		return missing
	}
	return strings.ReplaceAll(v, "`", "'")
}

func orMissing(v any) string {
	if v == nil {
		return missing
	}
	s := text(map[string]any{"v": v}, "v")
	if s == "" {
		return missing
	}
	return s
}

// escape neutralizes Telegram legacy Markdown control characters.
func escape(s string) string {
	return message.EscapeMarkdown(s)
}
