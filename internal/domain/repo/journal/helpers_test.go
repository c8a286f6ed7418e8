package journal_test

import (
	"errors"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

var (
	ts = time.Date(2024, 12, 25, 14, 0, 0, 0, time.UTC).Unix()

	errWrite = errors.New("journal is unavailable")
)

func newObject(name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}

	obj.SetAPIVersion("apps/v1")
	obj.SetKind("Deployment")
	obj.SetNamespace("default")
	obj.SetName(name)

	return obj
}
