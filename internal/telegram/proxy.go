package telegram

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gotd/td/telegram/dcs"
	"golang.org/x/net/proxy"

	"github.com/gnomegl/teleinvite/internal/config"
)

func init() {
	proxy.RegisterDialerType("http", newHTTPDialer)
}

// NewResolver returns a DC resolver that dials through the configured
// proxy.
func NewResolver(p *config.Proxy) (dcs.Resolver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dialer, err := proxy.FromURL(p.URL(), proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s dialer: %w", p.Protocol, err)
	}
	return dcs.Plain(dcs.PlainOptions{Dial: contextDial(dialer)}), nil
}

func contextDial(d proxy.Dialer) dcs.DialFunc {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// httpDialer tunnels connections through an HTTP proxy with CONNECT.
type httpDialer struct {
	proxyAddr string
	auth      *url.Userinfo
	forward   proxy.Dialer
}

func newHTTPDialer(u *url.URL, forward proxy.Dialer) (proxy.Dialer, error) {
	if u.Host == "" {
		return nil, fmt.Errorf("http proxy address is empty")
	}
	return &httpDialer{proxyAddr: u.Host, auth: u.User, forward: forward}, nil
}

func (d *httpDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

func (d *httpDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := contextDial(d.forward)(ctx, network, d.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to proxy: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.auth != nil {
		password, _ := d.auth.Password()
		req.SetBasicAuth(d.auth.Username(), password)
		req.Header.Set("Proxy-Authorization", req.Header.Get("Authorization"))
		req.Header.Del("Authorization")
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send CONNECT: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		conn.Close()
		return nil, fmt.Errorf("proxy refused CONNECT to %s: %s", addr, resp.Status)
	}

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
