package factory

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/simkube-go/sk-tracer/internal/config"
)

// CreateKubeClients returns a dynamic client and a discovery backed REST mapper.
// Without explicit kubeconfig, the default loading rules apply, then the in-cluster config.
func CreateKubeClients(conf config.Kubernetes) (dynamic.Interface, meta.RESTMapper, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = conf.Kubeconfig

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	restConfig.QPS = conf.QPS
	restConfig.Burst = conf.Burst
	restConfig.UserAgent = "sk-tracer"

	client, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient))

	return client, mapper, nil
}
