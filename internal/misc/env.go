package misc

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Lookup returns the variable's value and whether it is set, even when set to "".
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// ParseSeconds parses plain seconds or Go duration syntax, clamping negatives to 0.
func ParseSeconds(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 {
			return 0, true
		}
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil {
		if d <= 0 {
			return 0, true
		}
		return d, true
	}
	return 0, false
}

// GetBool understands the usual yes/no spellings and falls back to def otherwise.
func GetBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "t", "yes", "y":
		return true
	case "0", "false", "f", "no", "n":
		return false
	default:
		return def
	}
}
