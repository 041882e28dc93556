package config

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/misc"
	"github.com/vshulcz/pgprobe/internal/resolver"
)

const stdoutOutput = "-"

var defaultStateFile = filepath.Join(os.TempDir(), "pgprobe-state.json")

// ProbeConfig is everything one probe invocation needs.
type ProbeConfig struct {
	Address     string
	Key         string
	Output      string
	StateFile   string
	StateDSN    string
	Per         string
	Conn        domain.ConnectionConfig
	Verbose     bool
	ShowVersion bool
}

// LoadProbeConfig merges ENV > CLI > YAML file > defaults.
func LoadProbeConfig(args []string, out io.Writer) (ProbeConfig, error) {
	if out == nil {
		out = io.Discard
	}

	fs := flag.NewFlagSet("pgprobe", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		cfgOpt, hostOpt, portOpt, userOpt, passOpt, dbOpt string
		svcOpt, svcFileOpt, sslOpt, timeoutOpt            string
		addrOpt, keyOpt, outOpt, stateOpt, stateDSNOpt    string
		perOpt                                            string
		verboseOpt, versionOpt                            bool
	)
	fs.StringVar(&cfgOpt, "c", "", "path to YAML config file")
	fs.StringVar(&hostOpt, "host", "", fmt.Sprintf("PostgreSQL host or socket directory, default: %s", domain.DefaultHost))
	fs.StringVar(&portOpt, "port", "", fmt.Sprintf("PostgreSQL port, default: %d", domain.DefaultPort))
	fs.StringVar(&userOpt, "user", "", "PostgreSQL user")
	fs.StringVar(&passOpt, "password", "", "PostgreSQL password")
	fs.StringVar(&dbOpt, "dbname", "", fmt.Sprintf("database name, default: %s", domain.DefaultDBName))
	fs.StringVar(&svcOpt, "service", "", "connection service name; overrides host, port, user, password and dbname")
	fs.StringVar(&svcFileOpt, "servicefile", "", "connection service file")
	fs.StringVar(&sslOpt, "sslmode", "", "libpq sslmode")
	fs.StringVar(&timeoutOpt, "connect-timeout", "", "connect timeout (seconds or Go duration)")
	fs.StringVar(&addrOpt, "a", "", "monitoring backend address (host:port or URL)")
	fs.StringVar(&keyOpt, "k", "", "secret key for HashSHA256 header")
	fs.StringVar(&outOpt, "o", "", "append envelopes as JSON lines to this file, - for stdout")
	fs.StringVar(&stateOpt, "state", "", fmt.Sprintf("counter state file, default: %s", defaultStateFile))
	fs.StringVar(&stateDSNOpt, "state-dsn", "", "PostgreSQL DSN for counter state; overrides -state")
	fs.StringVar(&perOpt, "per", "", "counter rate unit: second or minute")
	fs.BoolVar(&verboseOpt, "v", false, "verbose logging")
	fs.BoolVar(&versionOpt, "version", false, "print build info and exit")

	if err := fs.Parse(args); err != nil {
		return ProbeConfig{}, err
	}
	if fs.NArg() > 0 {
		return ProbeConfig{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	fc, err := LoadFile(FromEnvOrFlag("CONFIG", cfgOpt, ""))
	if err != nil {
		return ProbeConfig{}, err
	}
	pg := fc.PostgreSQL

	conn := domain.ConnectionConfig{
		Host:        explicitOr("PGPROBE_HOST", hostOpt, set["host"], pg.Host, domain.DefaultHost),
		Port:        resolver.CoercePort(FromEnvOrFlag("PGPROBE_PORT", portOpt, pg.Port)),
		User:        FromEnvOrFlag("PGPROBE_USER", userOpt, pg.User),
		Password:    FromEnvOrFlag("PGPROBE_PASSWORD", passOpt, pg.Password),
		DBName:      FromEnvOrFlag("PGPROBE_DBNAME", dbOpt, pg.DBName),
		Service:     FromEnvOrFlag("PGPROBE_SERVICE", svcOpt, pg.Service),
		ServiceFile: FromEnvOrFlag("PGPROBE_SERVICEFILE", svcFileOpt, pg.ServiceFile),
		SSLMode:     FromEnvOrFlag("PGPROBE_SSLMODE", sslOpt, pg.SSLMode),
	}
	if raw := FromEnvOrFlag("PGPROBE_CONNECT_TIMEOUT", timeoutOpt, pg.ConnectTimeout); raw != "" {
		d, ok := misc.ParseSeconds(raw)
		if !ok {
			return ProbeConfig{}, fmt.Errorf("invalid connect timeout: %q", raw)
		}
		conn.ConnectTimeout = d.Truncate(time.Second)
	}

	addr := FromEnvOrFlag("ADDRESS", addrOpt, fc.Report.Address)
	if addr != "" {
		addr = normalizeAddressURL(addr)
		if _, err := url.ParseRequestURI(addr); err != nil {
			return ProbeConfig{}, fmt.Errorf("invalid server address: %q", addr)
		}
	}

	output := FromEnvOrFlag("OUTPUT", outOpt, fc.Report.Output)
	if addr == "" && output == "" {
		output = stdoutOutput
	}

	return ProbeConfig{
		Conn:        conn,
		Address:     addr,
		Key:         FromEnvOrFlag("KEY", keyOpt, fc.Report.Key),
		Output:      output,
		StateFile:   FromEnvOrFlag("STATE_FILE", stateOpt, firstNonEmpty(fc.State.File, defaultStateFile)),
		StateDSN:    FromEnvOrFlag("STATE_DSN", stateDSNOpt, fc.State.DSN),
		Per:         FromEnvOrFlag("PER", perOpt, fc.Report.Per),
		Verbose:     FromEnvOrFlagBool("VERBOSE", verboseOpt, false),
		ShowVersion: versionOpt,
	}, nil
}

// explicitOr is like FromEnvOrFlag but honors a value explicitly set to "" at any layer.
func explicitOr(envKey, flagVal string, flagSet bool, fileVal *string, def string) string {
	if v, ok := misc.Lookup(envKey); ok {
		return strings.TrimSpace(v)
	}
	if flagSet {
		return strings.TrimSpace(flagVal)
	}
	if fileVal != nil {
		return strings.TrimSpace(*fileVal)
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func normalizeAddressURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if strings.HasPrefix(s, ":") {
		return "http://localhost" + s
	}
	return "http://" + s
}
