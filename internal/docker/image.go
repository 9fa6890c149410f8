// image.go covers the image side of post-deploy reporting: listing the
// images compose built and inspecting the base image.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// ListImages returns local images whose reference matches the pattern
// (Docker "reference" filter, glob syntax, e.g. "*banking*"). An empty
// pattern lists every image.
func (c *Client) ListImages(ctx context.Context, reference string) ([]model.ImageInfo, error) {
	opts := image.ListOptions{}
	if reference != "" {
		opts.Filters = filters.NewArgs(filters.Arg("reference", reference))
	}

	images, err := c.inner.ImageList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	result := make([]model.ImageInfo, 0, len(images))
	for _, img := range images {
		result = append(result, model.ImageInfo{
			ID:      img.ID,
			Tags:    img.RepoTags,
			Created: time.Unix(img.Created, 0).UTC(),
			Size:    img.Size,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return firstTag(result[i]) < firstTag(result[j])
	})
	return result, nil
}

func firstTag(img model.ImageInfo) string {
	if len(img.Tags) == 0 {
		return img.ID
	}
	return img.Tags[0]
}

// InspectImage returns the raw JSON inspection document of an image.
// If the image is not present locally it is pulled first, since the
// inspected base image is external to the project.
func (c *Client) InspectImage(ctx context.Context, ref string) ([]byte, error) {
	_, raw, err := c.inner.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return raw, nil
	}
	if !cerrdefs.IsNotFound(err) {
		return nil, fmt.Errorf("failed to inspect image %q: %w", ref, err)
	}

	if err := c.pullImage(ctx, ref); err != nil {
		return nil, err
	}

	_, raw, err = c.inner.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %q after pull: %w", ref, err)
	}
	return raw, nil
}

// pullImage pulls ref and waits for the pull to finish. The progress
// stream must be drained; the daemon stops the pull when it is closed early.
func (c *Client) pullImage(ctx context.Context, ref string) error {
	rc, err := c.inner.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	defer func() { _ = rc.Close() }()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	return nil
}

// rawInspect is the subset of the image inspection document we read.
type rawInspect struct {
	ID           string   `json:"Id"`
	RepoTags     []string `json:"RepoTags"`
	Created      string   `json:"Created"`
	Os           string   `json:"Os"`
	Architecture string   `json:"Architecture"`
	Config       *struct {
		ExposedPorts map[string]struct{} `json:"ExposedPorts"`
	} `json:"Config"`
}

// ParseImageMetadata decodes an inspection document into ImageMetadata.
//
// It accepts both the single object returned by the Engine API and the
// one-element array printed by `docker image inspect`, so files written
// by either can be parsed.
func ParseImageMetadata(ref string, raw []byte) (*model.ImageMetadata, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty inspection metadata for %q", ref)
	}

	var doc rawInspect
	if raw[0] == '[' {
		var docs []rawInspect
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode inspection metadata for %q: %w", ref, err)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("empty inspection metadata for %q", ref)
		}
		doc = docs[0]
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode inspection metadata for %q: %w", ref, err)
	}

	meta := &model.ImageMetadata{
		Reference:    ref,
		ID:           doc.ID,
		Tags:         doc.RepoTags,
		OS:           doc.Os,
		Architecture: doc.Architecture,
	}

	if doc.Created != "" {
		created, err := time.Parse(time.RFC3339Nano, doc.Created)
		if err != nil {
			return nil, fmt.Errorf("invalid creation time %q for %q: %w", doc.Created, ref, err)
		}
		meta.Created = created
	}

	if doc.Config != nil {
		meta.ExposedPorts = sortedPorts(doc.Config.ExposedPorts)
	}
	return meta, nil
}

// sortedPorts renders exposed-port keys ("80/tcp", "53/udp") sorted by
// port number, then protocol.
func sortedPorts(exposed map[string]struct{}) []string {
	ports := make([]nat.Port, 0, len(exposed))
	for k := range exposed {
		ports = append(ports, nat.Port(k))
	}
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Int() != ports[j].Int() {
			return ports[i].Int() < ports[j].Int()
		}
		return ports[i].Proto() < ports[j].Proto()
	})

	out := make([]string, 0, len(ports))
	for _, p := range ports {
		out = append(out, p.Port()+"/"+p.Proto())
	}
	return out
}
