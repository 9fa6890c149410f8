package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyFile is returned for a compose file with no content.
	ErrEmptyFile = errors.New("compose file is empty")

	// ErrInvalidFile is returned when the file is not valid YAML or not a
	// valid compose document.
	ErrInvalidFile = errors.New("invalid compose file")

	// ErrNoServices is returned when the file declares no services.
	ErrNoServices = errors.New("compose file declares no services")
)

// Project is the parsed view of a compose file.
type Project struct {
	Name     string    `json:"name"`
	Services []Service `json:"services"`
}

// Service is one declared service.
type Service struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`

	// Build is true when the service is built from a local context.
	Build bool `json:"build"`

	// BuildContext is the build context as written in the file.
	BuildContext string `json:"buildContext,omitempty"`

	Ports     []PortMapping `json:"ports,omitempty"`
	DependsOn []string      `json:"dependsOn,omitempty"`
}

// PortMapping is a container port and the host port it is published on.
// Published is 0 when the port is not published or is a range.
type PortMapping struct {
	Target    int    `json:"target"`
	Published int    `json:"published"`
	Protocol  string `json:"protocol"`
}

// Service returns the service with the given name.
func (p *Project) Service(name string) (Service, bool) {
	for _, s := range p.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// PublishedPorts returns every host port published by any service,
// sorted and without duplicates.
func (p *Project) PublishedPorts() []int {
	seen := make(map[int]bool)
	var ports []int
	for _, s := range p.Services {
		for _, m := range s.Ports {
			if m.Published == 0 || seen[m.Published] {
				continue
			}
			seen[m.Published] = true
			ports = append(ports, m.Published)
		}
	}
	sort.Ints(ports)
	return ports
}

// Load reads and parses the compose file at path. The project name is
// used for interpolation of ${COMPOSE_PROJECT_NAME}; an empty name lets
// compose derive it from the file's directory.
func Load(ctx context.Context, path, projectName string) (*Project, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file %s: %w", path, err)
	}
	return Parse(ctx, path, projectName, content)
}

// Parse parses compose YAML. filename is used for error messages and as
// the base for relative paths.
func Parse(ctx context.Context, filename, projectName string, content []byte) (*Project, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyFile
	}

	// compose-go wants the decoded document alongside the raw bytes.
	var dict map[string]any
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, filename, err)
	}
	if dict == nil {
		return nil, fmt.Errorf("%w: %s: not a YAML mapping", ErrInvalidFile, filename)
	}

	workingDir := filepath.Dir(filename)
	if projectName == "" {
		abs, err := filepath.Abs(workingDir)
		if err != nil {
			abs = workingDir
		}
		projectName = loader.NormalizeProjectName(filepath.Base(abs))
	}

	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir: workingDir,
		ConfigFiles: []types.ConfigFile{
			{
				Filename: filename,
				Content:  content,
				Config:   dict,
			},
		},
		Environment: types.NewMapping(os.Environ()),
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		// Build contexts stay as written so they can be checked against
		// the required directories.
		opts.ResolvePaths = false
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, filename, err)
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	result := &Project{
		Name:     project.Name,
		Services: make([]Service, 0, len(project.Services)),
	}
	for _, svc := range project.Services {
		result.Services = append(result.Services, convertService(svc))
	}
	sort.Slice(result.Services, func(i, j int) bool {
		return result.Services[i].Name < result.Services[j].Name
	})
	return result, nil
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig) Service {
	service := Service{
		Name:  svc.Name,
		Image: svc.Image,
	}

	if svc.Build != nil {
		service.Build = true
		service.BuildContext = svc.Build.Context
	}

	for _, p := range svc.Ports {
		// A published range ("8080-8081") is left as 0.
		published := 0
		if p.Published != "" {
			if pub, err := strconv.ParseUint(p.Published, 10, 16); err == nil {
				published = int(pub)
			}
		}
		protocol := p.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		service.Ports = append(service.Ports, PortMapping{
			Target:    int(p.Target),
			Published: published,
			Protocol:  protocol,
		})
	}

	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	sort.Strings(service.DependsOn)

	return service
}
