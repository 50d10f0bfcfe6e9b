package crew

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"

	"github.com/gosuda/crewdeck/internal/domain"
)

// SandboxRuntime provisions the per-instance tool sandboxes: one
// network-isolated container per cached instance, created on first use of
// the key and disposed when the registry evicts it.
type SandboxRuntime struct {
	client       *client.Client
	imageDefault string
	cpuLimit     string
	memLimit     string
}

func NewSandboxRuntime(host, imageDefault, cpuLimit, memLimit string) (*SandboxRuntime, error) {
	opts := []client.Opt{
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("crew.NewSandboxRuntime: %w", err)
	}

	return &SandboxRuntime{
		client:       c,
		imageDefault: imageDefault,
		cpuLimit:     cpuLimit,
		memLimit:     memLimit,
	}, nil
}

// CreateSandbox creates and starts an isolated container for an instance.
// Returns the container id.
func (s *SandboxRuntime) CreateSandbox(ctx context.Context, key domain.InstanceKey, image string, environment map[string]string) (string, error) {
	if image == "" {
		image = s.imageDefault
	}

	env := make([]string, 0, len(environment)+2)
	env = append(env,
		"CREWDECK_WORKSPACE_ID="+key.WorkspaceID.String(),
		"CREWDECK_PROJECT="+key.Project,
	)
	for k, v := range environment {
		env = append(env, k+"="+v)
	}

	memLimit, err := parseMemoryLimit(s.memLimit)
	if err != nil {
		return "", fmt.Errorf("crew.SandboxRuntime.CreateSandbox: %w", err)
	}

	cpuQuota, err := parseCPULimit(s.cpuLimit)
	if err != nil {
		return "", fmt.Errorf("crew.SandboxRuntime.CreateSandbox: %w", err)
	}

	cfg := &container.Config{
		Image: image,
		Env:   env,
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   memLimit,
			CPUQuota: cpuQuota,
		},
		NetworkMode: "none",
	}

	name := "crewdeck-sbx-" + key.WorkspaceID.String() + "-" + sanitizeName(key.Project)

	resp, err := s.client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", fmt.Errorf("crew.SandboxRuntime.CreateSandbox: %w", err)
	}

	if startErr := s.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); startErr != nil {
		_ = s.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("crew.SandboxRuntime.CreateSandbox: start: %w", startErr)
	}

	return resp.ID, nil
}

// RemoveSandbox stops and removes an instance's sandbox container.
func (s *SandboxRuntime) RemoveSandbox(ctx context.Context, containerID string) error {
	timeout := 30 // seconds
	stopOpts := container.StopOptions{Timeout: &timeout}
	if err := s.client.ContainerStop(ctx, containerID, stopOpts); err != nil {
		return fmt.Errorf("crew.SandboxRuntime.RemoveSandbox: stop: %w", err)
	}

	err := s.client.ContainerRemove(ctx, containerID, container.RemoveOptions{
		RemoveVolumes: false,
		Force:         false,
	})
	if err != nil {
		return fmt.Errorf("crew.SandboxRuntime.RemoveSandbox: %w", err)
	}
	return nil
}

// Close closes the Docker client.
func (s *SandboxRuntime) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("crew.SandboxRuntime.Close: %w", err)
	}
	return nil
}

// parseMemoryLimit converts "512m" / "2g" style limits to bytes. Empty
// disables the limit.
func parseMemoryLimit(limit string) (int64, error) {
	if limit == "" {
		return 0, nil
	}

	limit = strings.ToLower(strings.TrimSpace(limit))
	mult := int64(1)
	switch {
	case strings.HasSuffix(limit, "g"):
		mult = 1 << 30
		limit = strings.TrimSuffix(limit, "g")
	case strings.HasSuffix(limit, "m"):
		mult = 1 << 20
		limit = strings.TrimSuffix(limit, "m")
	case strings.HasSuffix(limit, "k"):
		mult = 1 << 10
		limit = strings.TrimSuffix(limit, "k")
	}

	n, err := strconv.ParseInt(limit, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("crew: invalid memory limit %q", limit)
	}
	return n * mult, nil
}

// parseCPULimit converts a cpu count like "1.5" to a CFS quota against the
// default 100ms period. Empty disables the limit.
func parseCPULimit(limit string) (int64, error) {
	if limit == "" {
		return 0, nil
	}

	cpus, err := strconv.ParseFloat(strings.TrimSpace(limit), 64)
	if err != nil {
		return 0, fmt.Errorf("crew: invalid cpu limit %q", limit)
	}
	return int64(cpus * 100000), nil
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
