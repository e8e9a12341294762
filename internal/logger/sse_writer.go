package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

const defaultTimeFormat = time.Kitchen

// SSEPublisher is the part of the SSE server the writer needs.
type SSEPublisher interface {
	Publish(topic string, event *sse.Event)
}

// Formatter renders one decoded log field as text.
type Formatter func(interface{}) string

// LogMessage is the payload published on the "logs" stream.
type LogMessage struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (lm LogMessage) Bytes() ([]byte, error) {
	return json.Marshal(lm)
}

// SSEWriter renders zerolog JSON events into console-style lines and
// publishes them on the SSE "logs" stream.
type SSEWriter struct {
	SSE        SSEPublisher
	TimeFormat string
	PartsOrder []string
}

func NewSSEWriter(srv SSEPublisher, options ...func(w *SSEWriter)) SSEWriter {
	w := SSEWriter{
		SSE:        srv,
		TimeFormat: defaultTimeFormat,
		PartsOrder: defaultPartsOrder(),
	}

	for _, opt := range options {
		opt(&w)
	}

	return w
}

func defaultPartsOrder() []string {
	return []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}
}

func (w SSEWriter) Write(p []byte) (int, error) {
	if w.SSE == nil {
		return 0, nil
	}

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, fmt.Errorf("cannot decode event: %w", err)
	}

	var buf bytes.Buffer
	for _, part := range w.PartsOrder {
		w.writePart(&buf, evt, part)
	}
	w.writeFields(&buf, evt)

	msg := LogMessage{
		Time:    defaultFormatTimestamp(w.TimeFormat)(evt[zerolog.TimestampFieldName]),
		Level:   defaultFormatLevel()(evt[zerolog.LevelFieldName]),
		Message: strings.TrimSpace(buf.String()),
	}

	data, err := msg.Bytes()
	if err != nil {
		return 0, err
	}

	w.SSE.Publish("logs", &sse.Event{Data: data})

	return len(p), nil
}

// writePart renders a single ordered part followed by a space.
func (w SSEWriter) writePart(buf *bytes.Buffer, evt map[string]interface{}, p string) {
	var f Formatter

	switch p {
	case zerolog.TimestampFieldName:
		f = defaultFormatTimestamp(w.TimeFormat)
	case zerolog.LevelFieldName:
		f = defaultFormatLevel()
	case zerolog.CallerFieldName:
		f = defaultFormatCaller()
	case zerolog.MessageFieldName:
		f = defaultFormatMessage
	default:
		f = defaultFormatFieldValue
	}

	if s := f(evt[p]); len(s) > 0 {
		buf.WriteString(s)
		buf.WriteByte(' ')
	}
}

// writeFields renders the remaining fields, error first, the rest sorted.
func (w SSEWriter) writeFields(buf *bytes.Buffer, evt map[string]interface{}) {
	fields := make([]string, 0, len(evt))
	for name := range evt {
		switch name {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.CallerFieldName, zerolog.MessageFieldName:
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)

	if i := sort.SearchStrings(fields, zerolog.ErrorFieldName); i < len(fields) && fields[i] == zerolog.ErrorFieldName {
		fields = append(fields[:i], fields[i+1:]...)
		fields = append([]string{zerolog.ErrorFieldName}, fields...)
	}

	for i, name := range fields {
		if i > 0 {
			buf.WriteByte(' ')
		}

		if name == zerolog.ErrorFieldName {
			buf.WriteString(defaultFormatErrFieldName()(name))
			buf.WriteString(defaultFormatErrFieldValue()(evt[name]))
			continue
		}

		buf.WriteString(defaultFormatFieldName()(name))

		switch value := evt[name].(type) {
		case string:
			if needsQuote(value) {
				buf.WriteString(strconv.Quote(value))
			} else {
				buf.WriteString(value)
			}
		case json.Number:
			buf.WriteString(value.String())
		default:
			buf.WriteString(defaultFormatFieldValue(value))
		}
	}
}

// needsQuote reports whether the value cannot be printed bare.
func needsQuote(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) || r == '"' || r == '\\' || r < 0x20 {
			return true
		}
	}
	return false
}

func defaultFormatTimestamp(timeFormat string) Formatter {
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	return func(i interface{}) string {
		t := "<nil>"
		switch tt := i.(type) {
		case string:
			ts, err := time.ParseInLocation(zerolog.TimeFieldFormat, tt, time.Local)
			if err != nil {
				t = tt
			} else {
				t = ts.Local().Format(timeFormat)
			}
		case json.Number:
			if sec, err := tt.Int64(); err == nil {
				t = time.Unix(sec, 0).Local().Format(timeFormat)
			}
		}
		return t
	}
}

func defaultFormatLevel() Formatter {
	return func(i interface{}) string {
		if ll, ok := i.(string); ok {
			switch ll {
			case zerolog.LevelTraceValue:
				return "TRC"
			case zerolog.LevelDebugValue:
				return "DBG"
			case zerolog.LevelInfoValue:
				return "INF"
			case zerolog.LevelWarnValue:
				return "WRN"
			case zerolog.LevelErrorValue:
				return "ERR"
			case zerolog.LevelFatalValue:
				return "FTL"
			case zerolog.LevelPanicValue:
				return "PNC"
			default:
				return ll
			}
		}
		return "???"
	}
}

func defaultFormatCaller() Formatter {
	return func(i interface{}) string {
		var c string
		if cc, ok := i.(string); ok {
			c = cc
		}
		if len(c) == 0 {
			return c
		}
		if cwd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(cwd, c); err == nil {
				c = rel
			}
		}
		return c + " >"
	}
}

func defaultFormatMessage(i interface{}) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%s", i)
}

func defaultFormatFieldName() Formatter {
	return func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
}

func defaultFormatFieldValue(i interface{}) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%v", i)
}

func defaultFormatErrFieldName() Formatter {
	return func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
}

func defaultFormatErrFieldValue() Formatter {
	return func(i interface{}) string {
		if i == nil {
			return ""
		}
		s := fmt.Sprintf("%v", i)
		if needsQuote(s) {
			s = strconv.Quote(s)
		}
		return s + "="
	}
}
