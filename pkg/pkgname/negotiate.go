package pkgname

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PackageInfo is the package-level remote metadata (package-info.json).
type PackageInfo struct {
	// Path is where the package is installed, relative to the write path.
	Path string
	// Rapid is the optional legacy registry tag.
	Rapid string
	// Channels in document order.
	Channels []Channel
}

// Channel is one release track and the platforms it is published for.
// WellFormed is false when the document did not carry a list of strings.
type Channel struct {
	Name       string
	Platforms  []string
	WellFormed bool
}

type packageInfoDoc struct {
	Path     string          `json:"path"`
	Rapid    *string         `json:"rapid"`
	Channels json.RawMessage `json:"channels"`
}

// UnmarshalJSON decodes package-info.json, keeping channel order.
func (p *PackageInfo) UnmarshalJSON(data []byte) error {
	var doc packageInfoDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	channels, err := decodeChannels(doc.Channels)
	if err != nil {
		return err
	}
	p.Path = doc.Path
	p.Rapid = ""
	if doc.Rapid != nil {
		p.Rapid = *doc.Rapid
	}
	p.Channels = channels
	return nil
}

// MarshalJSON encodes the info back into the remote document shape.
func (p PackageInfo) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	path, _ := json.Marshal(p.Path)
	buf.WriteString(`"path":`)
	buf.Write(path)
	if p.Rapid != "" {
		rapid, _ := json.Marshal(p.Rapid)
		buf.WriteString(`,"rapid":`)
		buf.Write(rapid)
	}
	buf.WriteString(`,"channels":{`)
	for i, ch := range p.Channels {
		if i > 0 {
			buf.WriteString(",")
		}
		key, _ := json.Marshal(ch.Name)
		buf.Write(key)
		buf.WriteString(":")
		if !ch.WellFormed {
			buf.WriteString("null")
			continue
		}
		platforms := ch.Platforms
		if platforms == nil {
			platforms = []string{}
		}
		val, err := json.Marshal(platforms)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func decodeChannels(raw json.RawMessage) ([]Channel, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("channels: expected object")
	}

	var channels []Channel
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("channels: expected string key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("channels[%s]: %w", key, err)
		}
		ch := Channel{Name: key}
		var platforms []string
		if err := json.Unmarshal(value, &platforms); err == nil && platforms != nil {
			ch.Platforms = platforms
			ch.WellFormed = true
		}
		channels = append(channels, ch)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return channels, nil
}

// Negotiate picks the channel and platform for n from info.
//
// An explicit channel must match exactly; otherwise "main" is preferred and
// the first well-formed channel is accepted. An explicit non-"any" platform
// must match exactly; otherwise the native platform is preferred and "any" is
// accepted. Other non-native platforms are never chosen implicitly.
func Negotiate(n Name, info *PackageInfo, native string) (Resolved, error) {
	if info == nil {
		return Resolved{}, fmt.Errorf("%w: no package info for %s", ErrNoMatchingChannel, n.ID())
	}

	var chosen *Channel
	for i := range info.Channels {
		ch := &info.Channels[i]
		if !ch.WellFormed {
			continue
		}
		if n.Channel != "" {
			if ch.Name == n.Channel {
				chosen = ch
				break
			}
			continue
		}
		if chosen == nil || ch.Name == DefaultChannel {
			chosen = ch
			if ch.Name == DefaultChannel {
				break
			}
		}
	}
	if chosen == nil {
		if n.Channel != "" {
			return Resolved{}, fmt.Errorf("%w: %s has no channel %q", ErrNoMatchingChannel, n.ID(), n.Channel)
		}
		return Resolved{}, fmt.Errorf("%w: %s", ErrNoMatchingChannel, n.ID())
	}

	exact := n.Platform != "" && n.Platform != PlatformAny
	platform := ""
	for _, p := range chosen.Platforms {
		if exact {
			if p == n.Platform {
				platform = p
				break
			}
			continue
		}
		if p == native {
			platform = p
			break
		}
		if p == PlatformAny {
			platform = p
		}
	}
	if platform == "" {
		want := n.Platform
		if !exact {
			want = native + " or " + PlatformAny
		}
		return Resolved{}, fmt.Errorf("%w: %s@%s has no platform %s", ErrNoMatchingPlatform, n.ID(), chosen.Name, want)
	}

	return Resolved{Name: n, Channel: chosen.Name, Platform: platform}, nil
}
