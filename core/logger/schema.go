package logger

import "strings"

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]bool{
	"ok":           true,
	"error":        true,
	"skip":         true,
	"retry":        true,
	"rate_limited": true,
	"cancelled":    true,
}

// allowedOutcome lists dispatch, delivery and worker outcomes.
var allowedOutcome = map[string]bool{
	"ok":           true,
	"unchanged":    true,
	"unhandled":    true,
	"error":        true,
	"rejected":     true,
	"failed":       true,
	"cancelled":    true,
	"rate_limited": true,
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeEnum lowercases v and reports whether it belongs to allowed.
func normalizeEnum(v string, allowed map[string]bool) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	return v, allowed[v]
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"route",
	"state",
	"next",
	"outcome",
	"kind",
	"took_ms",
	"requests",
	"error",
	"error_kind",
	"class",
	"action",
	"attempt",
	"attempts",
	"backoff_ms",
	"worker",
	"queue",
	"mode",
	"listen",
	"public_url",
	"driver",
	"addr",
	"version",
	"go_version",
	"cfg_profile",
}
