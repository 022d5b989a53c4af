// ABOUTME: View URL normalisation for published face endpoints.
// ABOUTME: Host-relative views are rewritten into absolute URLs on the registry host.

package face

import (
	"net"
	"strconv"
	"strings"
)

// NormalizeViews returns a copy of views with host-relative entries made
// absolute. A view with no URL but a port becomes protocol://host:port/path;
// a URL starting with "/" is resolved against protocol://host[:port].
// Absolute URLs are left alone.
func NormalizeViews(views []View, hostname string) []View {
	if len(views) == 0 {
		return nil
	}
	out := make([]View, len(views))
	for i, v := range views {
		switch {
		case v.URL == "" && v.Port > 0:
			v.URL = viewOrigin(v, hostname) + cleanPath(v.Path)
		case strings.HasPrefix(v.URL, "/"):
			v.URL = viewOrigin(v, hostname) + v.URL
		}
		out[i] = v
	}
	return out
}

func viewOrigin(v View, hostname string) string {
	proto := v.Protocol
	if proto == "" {
		proto = "http"
	}
	host := hostname
	if v.Port > 0 {
		host = net.JoinHostPort(hostname, strconv.Itoa(v.Port))
	}
	return proto + "://" + host
}

func cleanPath(path string) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
