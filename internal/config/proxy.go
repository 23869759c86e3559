package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

type Protocol string

const (
	ProtocolHTTP   Protocol = "HTTP"
	ProtocolSOCKS5 Protocol = "SOCKS5"
)

// Numeric protocol codes written by older configuration files.
const (
	legacySOCKS5 = 2
	legacyHTTP   = 3
)

// ParseProtocol maps user input to a protocol. Anything other than HTTP
// selects SOCKS5.
func ParseProtocol(s string) Protocol {
	if strings.EqualFold(strings.TrimSpace(s), string(ProtocolHTTP)) {
		return ProtocolHTTP
	}
	return ProtocolSOCKS5
}

func (p Protocol) Scheme() string {
	if p == ProtocolHTTP {
		return "http"
	}
	return "socks5"
}

func (p *Protocol) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		switch n {
		case legacySOCKS5:
			*p = ProtocolSOCKS5
		case legacyHTTP:
			*p = ProtocolHTTP
		default:
			return fmt.Errorf("unsupported proxy protocol code %d", n)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid proxy protocol: %s", data)
	}
	*p = ParseProtocol(s)
	return nil
}

type Proxy struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Protocol Protocol `json:"protocol" yaml:"protocol"`
	Host     string   `json:"host" yaml:"host"`
	Port     int      `json:"port" yaml:"port"`
}

func (p *Proxy) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("proxy host is empty")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("invalid proxy port: %d", p.Port)
	}
	return nil
}

func (p *Proxy) URL() *url.URL {
	return &url.URL{
		Scheme: p.Protocol.Scheme(),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
	}
}
