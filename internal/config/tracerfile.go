package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// tracerFile is the layout of a tracer configuration file:
//
//	trackedObjects:
//	  apps/v1.Deployment:
//	    podSpecTemplatePaths:
//	      - /spec/template
type tracerFile struct {
	TrackedObjects map[string]trackedObjectFile `json:"trackedObjects"`
}

type trackedObjectFile struct {
	PodSpecTemplatePath  string   `json:"podSpecTemplatePath,omitempty"`
	PodSpecTemplatePaths []string `json:"podSpecTemplatePaths,omitempty"`
}

// LoadTracerFile reads the tracked objects of a tracer configuration file.
// Objects are sorted by key.
func LoadTracerFile(path string) ([]TrackedObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracer file %s: %w", path, err)
	}

	return parseTracerFile(data)
}

func parseTracerFile(data []byte) ([]TrackedObject, error) {
	file := tracerFile{}

	err := yaml.UnmarshalStrict(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracer file: %w", err)
	}

	keys := make([]string, 0, len(file.TrackedObjects))
	for key := range file.TrackedObjects {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	ret := make([]TrackedObject, 0, len(keys))

	for _, key := range keys {
		apiVersion, kind, err := splitObjectKey(key)
		if err != nil {
			return nil, err
		}

		obj := file.TrackedObjects[key]

		paths := obj.PodSpecTemplatePaths
		if obj.PodSpecTemplatePath != "" {
			paths = append([]string{obj.PodSpecTemplatePath}, paths...)
		}

		ret = append(ret, TrackedObject{
			APIVersion: apiVersion,
			Kind:       kind,
			StripPaths: paths,
		})
	}

	return ret, nil
}

// splitObjectKey splits "apps/v1.Deployment" into "apps/v1" and "Deployment".
func splitObjectKey(key string) (string, string, error) {
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return "", "", fmt.Errorf("%w: tracked object key %q is not <apiVersion>.<kind>", ErrInvalidConfig, key)
	}

	return key[:i], key[i+1:], nil
}
