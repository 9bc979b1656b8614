// Package discovery centralizes internal service-discovery conventions.
//
// The topology is embedded from services.yaml: every service is reachable
// at <name>:<port> inside the deployment network.
package discovery

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ServiceLedger is the question ledger gRPC service identity.
	ServiceLedger = "ledger"
	// ServiceMetrics is the ledger's Prometheus scrape endpoint identity.
	ServiceMetrics = "metrics"
	// ServiceMCP is the MCP HTTP service identity.
	ServiceMCP = "mcp"
	// ServiceJaeger is the jaeger HTTP service identity.
	ServiceJaeger = "jaeger"
)

// Service is one topology entry. A zero port means the protocol is not served.
type Service struct {
	Name     string `yaml:"name"`
	GRPCPort int    `yaml:"grpc_port"`
	HTTPPort int    `yaml:"http_port"`
}

//go:embed services.yaml
var topologyYAML []byte

var topology = mustParseTopology(topologyYAML)

// ParseTopology decodes a services document and rejects duplicate or
// portless entries.
func ParseTopology(data []byte) (map[string]Service, error) {
	var doc struct {
		Services []Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	services := make(map[string]Service, len(doc.Services))
	for _, svc := range doc.Services {
		svc.Name = strings.TrimSpace(svc.Name)
		if svc.Name == "" {
			return nil, fmt.Errorf("topology service name is required")
		}
		if svc.GRPCPort <= 0 && svc.HTTPPort <= 0 {
			return nil, fmt.Errorf("topology service %q has no port", svc.Name)
		}
		if _, exists := services[svc.Name]; exists {
			return nil, fmt.Errorf("topology service %q is defined twice", svc.Name)
		}
		services[svc.Name] = svc
	}
	return services, nil
}

// Lookup returns the topology entry for service.
func Lookup(service string) (Service, bool) {
	svc, ok := topology[strings.TrimSpace(service)]
	return svc, ok
}

// Names lists known services in sorted order.
func Names() []string {
	names := make([]string, 0, len(topology))
	for name := range topology {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	svc, _ := Lookup(service)
	return hostPort(svc.Name, svc.GRPCPort)
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	svc, _ := Lookup(service)
	return hostPort(svc.Name, svc.HTTPPort)
}

// LoopbackHTTPAddr returns localhost with the service's HTTP port, for
// listeners that must not be reachable from other hosts.
func LoopbackHTTPAddr(service string) string {
	svc, _ := Lookup(service)
	if svc.HTTPPort <= 0 {
		return ""
	}
	return hostPort("localhost", svc.HTTPPort)
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

// OrDefaultHTTPAddr returns value when set, otherwise the service convention.
func OrDefaultHTTPAddr(value, service string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return DefaultHTTPAddr(service)
}

func hostPort(host string, port int) string {
	if host == "" || port <= 0 {
		return ""
	}
	return host + ":" + strconv.Itoa(port)
}

func mustParseTopology(data []byte) map[string]Service {
	services, err := ParseTopology(data)
	if err != nil {
		panic(err)
	}
	return services
}
