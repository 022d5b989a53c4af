// ABOUTME: Listener setup for the gateway: plain TCP or a tsnet node on the tailnet.
// ABOUTME: On the tailnet the node's DNS name becomes the host in face view URLs.

package gateway

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/face-gateway/internal/config"
)

// Tailnet ports used when tailscale is enabled.
const (
	tailnetGRPCPort = 50051
	tailnetHTTPPort = 80
)

type listeners struct {
	grpc net.Listener
	http net.Listener
}

func (l listeners) close() {
	for _, ln := range []net.Listener{l.grpc, l.http} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

func (g *Gateway) listen(ctx context.Context) (listeners, error) {
	if g.config.Tailscale.Enabled {
		return g.listenTailnet(ctx)
	}
	return listenTCP(g.config.Server.GRPCAddr, g.config.Server.HTTPAddr)
}

func listenTCP(grpcAddr, httpAddr string) (listeners, error) {
	var l listeners
	var err error
	if l.grpc, err = net.Listen("tcp", grpcAddr); err != nil {
		return l, fmt.Errorf("listening for gRPC on %s: %w", grpcAddr, err)
	}
	if l.http, err = net.Listen("tcp", httpAddr); err != nil {
		l.close()
		return listeners{}, fmt.Errorf("listening for HTTP on %s: %w", httpAddr, err)
	}
	return l, nil
}

// tailnetStateDir defaults to ~/.local/share/face-gateway/tailscale.
func tailnetStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: no home directory for tailscale state, set tailscale.state_dir: %v", config.ErrConfiguration, err)
	}
	return filepath.Join(home, ".local", "share", "face-gateway", "tailscale"), nil
}

func (g *Gateway) listenTailnet(ctx context.Context) (listeners, error) {
	ts := g.config.Tailscale
	if g.config.Server.GRPCAddr != "" || g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server addresses are ignored on the tailnet",
			"grpc_addr", g.config.Server.GRPCAddr,
			"http_addr", g.config.Server.HTTPAddr,
		)
	}

	dir, err := tailnetStateDir(ts.StateDir)
	if err != nil {
		return listeners{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return listeners{}, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	authKey := cmp.Or(ts.AuthKey, os.Getenv("TS_AUTHKEY"))
	if authKey == "" {
		return listeners{}, fmt.Errorf("%w: tailscale needs tailscale.auth_key or TS_AUTHKEY", config.ErrConfiguration)
	}

	node := &tsnet.Server{
		Hostname:  ts.Hostname,
		Dir:       dir,
		Ephemeral: ts.Ephemeral,
		AuthKey:   authKey,
	}
	g.logger.Info("joining tailnet", "hostname", ts.Hostname, "state_dir", dir, "ephemeral", ts.Ephemeral)
	status, err := node.Up(ctx)
	if err != nil {
		_ = node.Close()
		return listeners{}, fmt.Errorf("starting tailscale: %w", err)
	}
	g.tsnetServer = node
	g.adoptTailnetName(status)

	var l listeners
	if l.grpc, err = node.Listen("tcp", ":"+strconv.Itoa(tailnetGRPCPort)); err == nil {
		l.http, err = node.Listen("tcp", ":"+strconv.Itoa(tailnetHTTPPort))
	}
	if err != nil {
		l.close()
		return listeners{}, fmt.Errorf("listening on tailnet: %w", err)
	}
	return l, nil
}

// adoptTailnetName points view URLs at the node's DNS name unless
// faces.hostname pins one.
func (g *Gateway) adoptTailnetName(status *ipnstate.Status) {
	var ip, dnsName string
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailnet node ready", "ip", ip, "dns_name", dnsName)

	if g.config.Faces.Hostname != "" || dnsName == "" {
		return
	}
	g.registry.SetHostname(dnsName)
}
