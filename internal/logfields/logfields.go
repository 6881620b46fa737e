package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyServer     = "server"
	KeyChannel    = "channel"
	KeyBot        = "bot"
	KeyPacket     = "packet"
	KeyFile       = "file"
	KeySearch     = "search"
	KeyCategory   = "category"
	KeyIntent     = "intent"
	KeyKind       = "kind"
	KeyPath       = "path"
	KeyJobName    = "job_name"
	KeySubject    = "subject"
	KeyDurationMS = "duration_ms"
	KeyDelay      = "delay"
	KeyCount      = "count"
	KeyID         = "id"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Server(name string) slog.Attr    { return slog.String(KeyServer, name) }
func Channel(name string) slog.Attr   { return slog.String(KeyChannel, name) }
func Bot(name string) slog.Attr       { return slog.String(KeyBot, name) }
func Packet(number int) slog.Attr     { return slog.Int(KeyPacket, number) }
func File(name string) slog.Attr      { return slog.String(KeyFile, name) }
func Search(name string) slog.Attr    { return slog.String(KeySearch, name) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Intent(kind string) slog.Attr    { return slog.String(KeyIntent, kind) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func JobName(n string) slog.Attr      { return slog.String(KeyJobName, n) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Delay(d time.Duration) slog.Attr { return slog.Duration(KeyDelay, d) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func ID(id string) slog.Attr          { return slog.String(KeyID, id) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
