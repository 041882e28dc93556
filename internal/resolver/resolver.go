// Package resolver turns connection settings into a single canonical target and renders it as a libpq DSN.
package resolver

import (
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/pgprobe/internal/domain"
)

// Resolve builds the connection descriptor. A non-empty service name wins over every other field.
func Resolve(cfg domain.ConnectionConfig) domain.Descriptor {
	if svc := cfg.Service; svc != "" {
		return domain.Descriptor{Service: svc, ServiceFile: cfg.ServiceFile}
	}

	port := cfg.Port
	if port == 0 {
		port = domain.DefaultPort
	}
	dbname := cfg.DBName
	if dbname == "" {
		dbname = domain.DefaultDBName
	}
	return domain.Descriptor{
		Host:           cfg.Host,
		User:           cfg.User,
		Password:       cfg.Password,
		Port:           port,
		DBName:         dbname,
		SSLMode:        cfg.SSLMode,
		ConnectTimeout: cfg.ConnectTimeout,
	}
}

// CoercePort reads the leading decimal digits of s, returning 0 when there are none.
func CoercePort(s string) int {
	s = strings.TrimSpace(s)
	sign := 1
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return sign * n
}

// DSN renders d in keyword/value form. Empty host, user and password are left out
// so the driver falls back to the default socket, PGUSER/PGPASSWORD, .pgpass and the OS user.
func DSN(d domain.Descriptor) string {
	var kv []string
	add := func(k, v string) {
		kv = append(kv, k+"="+quote(v))
	}

	if d.UsesService() {
		add("service", d.Service)
		if d.ServiceFile != "" {
			add("servicefile", d.ServiceFile)
		}
		return strings.Join(kv, " ")
	}

	if d.Host != "" {
		add("host", d.Host)
	}
	if d.User != "" {
		add("user", d.User)
	}
	if d.Password != "" {
		add("password", d.Password)
	}
	add("port", strconv.Itoa(d.Port))
	add("dbname", d.DBName)
	if d.SSLMode != "" {
		add("sslmode", d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		add("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Round(time.Second)/time.Second)))
	}
	return strings.Join(kv, " ")
}

func quote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
