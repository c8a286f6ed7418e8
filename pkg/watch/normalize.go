package watch

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// Normalize returns a copy of obj without any of the strip paths and with its
// type identity set to gvk. Missing paths are ignored. The input is not modified.
func Normalize(obj *unstructured.Unstructured, stripPaths [][]string, gvk schema.GroupVersionKind) *unstructured.Unstructured {
	if obj == nil {
		return nil
	}

	ret := obj.DeepCopy()

	for _, path := range stripPaths {
		if len(path) == 0 {
			continue
		}

		unstructured.RemoveNestedField(ret.Object, path...)
	}

	ret.SetGroupVersionKind(gvk)

	return ret
}

// ParseFieldPath splits a configured path into its fields.
// Both JSON pointers (/spec/template) and dotted paths (spec.template) are accepted.
func ParseFieldPath(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidFieldPath)
	}

	var fields []string

	if strings.HasPrefix(path, "/") {
		fields = strings.Split(path[1:], "/")
		for i, field := range fields {
			fields[i] = pointerUnescaper.Replace(field)
		}
	} else {
		fields = strings.Split(path, ".")
	}

	for _, field := range fields {
		if field == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidFieldPath, path)
		}
	}

	return fields, nil
}

// NewTrackedResource builds a TrackedResource from its configured form.
func NewTrackedResource(apiVersion, kind string, stripPaths []string) (TrackedResource, error) {
	if kind == "" {
		return TrackedResource{}, fmt.Errorf("%w: missing kind for %q", ErrUnknownResourceType, apiVersion)
	}

	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return TrackedResource{}, fmt.Errorf("failed to parse api version %q: %w", apiVersion, err)
	}

	if gv.Version == "" {
		return TrackedResource{}, fmt.Errorf("%w: missing version for %s", ErrUnknownResourceType, kind)
	}

	ret := TrackedResource{
		GVK:        gv.WithKind(kind),
		StripPaths: make([][]string, 0, len(stripPaths)),
	}

	for _, p := range stripPaths {
		fields, err := ParseFieldPath(p)
		if err != nil {
			return TrackedResource{}, fmt.Errorf("invalid strip path for %s: %w", ret.GVK.String(), err)
		}

		ret.StripPaths = append(ret.StripPaths, fields)
	}

	return ret, nil
}
