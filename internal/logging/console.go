package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// consoleFieldLimit caps the fields printed under an info line.
const consoleFieldLimit = 8

// Fields listed here are printed first, in this order.
var consolePriority = []string{
	FieldEventType,
	FieldDecisionType,
	"decision_result",
	"decision_reason",
	"status",
	"event_title",
	"release_title",
	"quality",
	"total_score",
	"releases_found",
	"error",
	FieldErrorHint,
	FieldImpact,
	"reason",
}

var consoleLabels = map[string]string{
	FieldEventType:    "Event",
	FieldDecisionType: "Decision",
	"decision_result": "Result",
	"decision_reason": "Why",
	FieldErrorHint:    "Hint",
	FieldEventID:      "Event ID",
	"release_title":   "Release",
	"event_title":     "Event Title",
}

// consoleHandler renders a header line per record followed by indented
// fields. Debug records show every field; other levels show a short,
// prioritized selection.
type consoleHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	addSource bool
	prefix    string
	preset    []field
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{out: &lockedWriter{w: w}, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append(append([]field(nil), h.preset...), collect(h.prefix, attrs)...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field(nil), h.preset...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, collect(h.prefix, []slog.Attr{a})...)
		return true
	})
	fields = lastWins(fields)

	var component, itemID, source string
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = plain(f.value)
		case FieldItemID:
			itemID = plain(f.value)
		case FieldSource:
			source = plain(f.value)
		}
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.In(time.Local).Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	buf.WriteString(levelName(r.Level))
	if component != "" {
		fmt.Fprintf(&buf, " [%s]", component)
	}
	if subject := subjectOf(itemID, source); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(": ")
	buf.WriteString(msg)
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')

	if r.Level < slog.LevelInfo {
		for _, f := range fields {
			if f.key == FieldComponent {
				continue
			}
			fmt.Fprintf(&buf, "    %s: %s\n", f.key, render(f.value))
		}
	} else {
		shown, hidden := pickFields(fields)
		for _, f := range shown {
			fmt.Fprintf(&buf, "    - %s: %s\n", labelFor(f.key), renderFor(f.key, f.value))
		}
		if hidden == 1 {
			buf.WriteString("    + 1 more field hidden\n")
		} else if hidden > 1 {
			fmt.Fprintf(&buf, "    + %d more fields hidden\n", hidden)
		}
	}
	return h.out.write(buf.Bytes())
}

// collect flattens groups into dotted keys.
func collect(prefix string, attrs []slog.Attr) []field {
	var out []field
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			inner := prefix
			if a.Key != "" {
				inner = prefix + a.Key + "."
			}
			out = append(out, collect(inner, v.Group())...)
			continue
		}
		if a.Key == "" {
			continue
		}
		out = append(out, field{key: prefix + a.Key, value: v})
	}
	return out
}

// lastWins drops earlier duplicates of a key, keeping the first position.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func pickFields(fields []field) ([]field, int) {
	rank := func(key string) int {
		for i, k := range consolePriority {
			if k == key {
				return i
			}
		}
		return len(consolePriority)
	}
	var candidates []field
	hidden := 0
	for _, f := range fields {
		switch {
		case f.key == FieldComponent || f.key == FieldItemID || f.key == FieldSource:
		case verboseOnly(f.key):
			hidden++
		default:
			candidates = append(candidates, f)
		}
	}
	// Stable insertion sort by priority; field counts are small.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && rank(candidates[j].key) < rank(candidates[j-1].key); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if len(candidates) > consoleFieldLimit {
		hidden += len(candidates) - consoleFieldLimit
		candidates = candidates[:consoleFieldLimit]
	}
	return candidates, hidden
}

func verboseOnly(key string) bool {
	switch key {
	case FieldCorrelationID, "content_hash", "guid", "download_url", "sub_scores":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func labelFor(key string) string {
	if label, ok := consoleLabels[key]; ok {
		return label
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func renderFor(key string, v slog.Value) string {
	if strings.HasSuffix(key, "_bytes") || key == "size" {
		switch v.Kind() {
		case slog.KindInt64:
			if v.Int64() >= 0 {
				return humanize.Bytes(uint64(v.Int64()))
			}
		case slog.KindUint64:
			return humanize.Bytes(v.Uint64())
		}
	}
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	s := render(v)
	if key == "error" && len(s) > 200 {
		s = s[:200] + "…"
	}
	return s
}

// plain renders a value without quoting, for header parts.
func plain(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return render(v)
}

func render(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		if v.Time().IsZero() {
			return ""
		}
		return v.Time().In(time.Local).Format("2006-01-02 15:04:05")
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindString, slog.KindAny:
		s := plain(v)
		if s == "" || strings.ContainsAny(s, "=\"") || strings.IndexFunc(s, func(r rune) bool { return r < ' ' }) >= 0 {
			return strconv.Quote(s)
		}
		return s
	default:
		return v.String()
	}
}

func subjectOf(itemID, source string) string {
	itemID, source = strings.TrimSpace(itemID), strings.TrimSpace(source)
	if len(itemID) == 36 && strings.Count(itemID, "-") == 4 {
		itemID = itemID[:8]
	}
	switch {
	case itemID != "" && source != "":
		return "Item " + itemID + " (" + source + ")"
	case itemID != "":
		return "Item " + itemID
	case source != "":
		return "Source " + source
	}
	return ""
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN "
	case level >= slog.LevelInfo:
		return "INFO "
	}
	return "DEBUG"
}
