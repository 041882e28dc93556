package domain

import (
	"net"
	"strconv"
	"time"
)

// Connection defaults.
const (
	DefaultHost   = "localhost"
	DefaultPort   = 5432
	DefaultDBName = "postgres"
)

// ConnectionConfig is the user-facing connection settings, built once per run.
//
// A host beginning with "/" is a Unix-domain socket directory and an empty
// host selects the default socket. When Service is set it alone determines
// the target.
type ConnectionConfig struct {
	Host           string
	User           string
	Password       string
	DBName         string
	Service        string
	ServiceFile    string
	SSLMode        string
	Port           int
	ConnectTimeout time.Duration
}

// Descriptor is the canonical connection target produced by the resolver.
type Descriptor struct {
	Host           string
	User           string
	Password       string
	DBName         string
	Service        string
	ServiceFile    string
	SSLMode        string
	Port           int
	ConnectTimeout time.Duration
}

// UsesService reports whether the target comes from a service file entry.
func (d Descriptor) UsesService() bool {
	return d.Service != ""
}

// Target is a credential-free identity of the monitored server.
func (d Descriptor) Target() string {
	if d.UsesService() {
		return "service=" + d.Service
	}
	host := d.Host
	if host == "" {
		host = "default-socket"
	}
	return net.JoinHostPort(host, strconv.Itoa(d.Port)) + "/" + d.DBName
}
