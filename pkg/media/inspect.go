// Package media inspects the opaque source payloads carried by svg and image
// nodes. Payloads are never decomposed for diffing; probing only recovers
// the intrinsic size a host needs to lay out an unsized node.
package media

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrExternalSource is returned for sources that reference data outside the
// payload (http URLs, image hashes). The host resolves those.
var ErrExternalSource = errors.New("media: source is not inline")

// Info describes an inspected payload.
type Info struct {
	Format string  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Inspect reads an image src. Inline data: URIs are decoded far enough to
// read the image header.
func Inspect(src string) (Info, error) {
	data, err := inlineData(src)
	if err != nil {
		return Info{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("media: decode image header: %w", err)
	}
	return Info{Format: format, Width: float64(cfg.Width), Height: float64(cfg.Height)}, nil
}

func inlineData(src string) ([]byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, ErrExternalSource
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("media: malformed data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("media: decode base64 payload: %w", err)
		}
		return data, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("media: unescape payload: %w", err)
	}
	return []byte(decoded), nil
}

// InspectSVG reads the intrinsic size of an SVG document from its root
// width/height attributes, falling back to the viewBox.
func InspectSVG(src string) (Info, error) {
	dec := xml.NewDecoder(strings.NewReader(src))
	for {
		tok, err := dec.Token()
		if err != nil {
			return Info{}, fmt.Errorf("media: no <svg> root: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return Info{}, fmt.Errorf("media: root element is <%s>, want <svg>", start.Name.Local)
		}
		return svgSize(start.Attr)
	}
}

func svgSize(attrs []xml.Attr) (Info, error) {
	info := Info{Format: "svg"}
	var viewBox string
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "width":
			info.Width = parseLength(attr.Value)
		case "height":
			info.Height = parseLength(attr.Value)
		case "viewBox":
			viewBox = attr.Value
		}
	}
	if (info.Width == 0 || info.Height == 0) && viewBox != "" {
		fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) == 4 {
			if info.Width == 0 {
				info.Width = parseLength(fields[2])
			}
			if info.Height == 0 {
				info.Height = parseLength(fields[3])
			}
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return info, errors.New("media: svg has no intrinsic size")
	}
	return info, nil
}

func parseLength(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
