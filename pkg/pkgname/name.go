package pkgname

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Platform identifiers understood by the remote layout.
const (
	PlatformWindows = "windows-amd64"
	PlatformLinux   = "linux-amd64"
	PlatformDarwin  = "darwin-amd64"
	PlatformAny     = "any"

	// DefaultChannel is preferred when no channel is requested.
	DefaultChannel = "main"
)

var (
	ErrInvalidName         = errors.New("invalid package name")
	ErrUnsupportedPlatform = errors.New("unsupported host platform")
	ErrNoMatchingChannel   = errors.New("no matching channel found")
	ErrNoMatchingPlatform  = errors.New("no matching platform found")
)

// user/repo[@channel][:version][#platform]
var fullNamePattern = regexp.MustCompile(
	`^(?P<user>[A-Za-z0-9_\-.]+)` +
		`/(?P<repo>[A-Za-z0-9_\-.]+)` +
		`(?:@(?P<channel>[A-Za-z0-9]+))?` +
		`(?::(?P<version>[0-9]+))?` +
		`(?:#(?P<platform>windows-amd64|linux-amd64|darwin-amd64|any))?$`,
)

// Name is a parsed compact package name. Channel and Platform are empty when
// not given; Pinned reports whether Version was given explicitly.
type Name struct {
	User     string
	Repo     string
	Channel  string
	Platform string
	Version  int
	Pinned   bool
}

// Parse validates and splits a compact package name.
func Parse(s string) (Name, error) {
	m := fullNamePattern.FindStringSubmatch(s)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	group := func(name string) string {
		return m[fullNamePattern.SubexpIndex(name)]
	}

	n := Name{
		User:     group("user"),
		Repo:     group("repo"),
		Channel:  group("channel"),
		Platform: group("platform"),
	}
	if v := group("version"); v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			return Name{}, fmt.Errorf("%w: version %q out of range", ErrInvalidName, v)
		}
		n.Version = version
		n.Pinned = true
	}
	return n, nil
}

// ID returns the "user/repo" identity used for local state.
func (n Name) ID() string {
	return n.User + "/" + n.Repo
}

// String reserializes the name with only the explicitly given parts.
func (n Name) String() string {
	var b strings.Builder
	b.WriteString(n.ID())
	if n.Channel != "" {
		b.WriteString("@")
		b.WriteString(n.Channel)
	}
	if n.Pinned {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(n.Version))
	}
	if n.Platform != "" {
		b.WriteString("#")
		b.WriteString(n.Platform)
	}
	return b.String()
}

// Resolved is a Name whose channel and platform were negotiated against the
// remote package info.
type Resolved struct {
	Name     Name
	Channel  string
	Platform string
}

// ID returns the "user/repo" identity.
func (r Resolved) ID() string {
	return r.Name.ID()
}

// HostPlatform maps the running OS to its native platform identifier.
func HostPlatform() (string, error) {
	return platformFor(runtime.GOOS)
}

func platformFor(goos string) (string, error) {
	switch goos {
	case "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	case "darwin":
		return PlatformDarwin, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}
