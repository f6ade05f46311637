// Package discovery centralizes in-network service addresses for assetflow
// deployments.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceCoordinator is the transaction coordinator gRPC service.
	ServiceCoordinator = "coordinator"
	// ServiceAssetLedger is the asset ledger HTTP service.
	ServiceAssetLedger = "asset-ledger"
	// ServiceComplianceGate is the compliance gate HTTP service.
	ServiceComplianceGate = "compliance-gate"
	// ServiceRedis hosts distributed transaction locks.
	ServiceRedis = "redis"
	// ServiceKafka receives audit relay messages.
	ServiceKafka = "kafka"
)

var grpcPorts = map[string]int{
	ServiceCoordinator: 8095,
}

var httpPorts = map[string]int{
	ServiceAssetLedger:    8096,
	ServiceComplianceGate: 8097,
}

var tcpPorts = map[string]int{
	ServiceRedis: 6379,
	ServiceKafka: 9092,
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), grpcPorts)
}

// DefaultTCPAddr returns the canonical address of an infrastructure service.
func DefaultTCPAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), tcpPorts)
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	return orDefault(value, DefaultGRPCAddr(service))
}

// OrDefaultTCPAddr returns value when set, otherwise the service convention.
func OrDefaultTCPAddr(value, service string) string {
	return orDefault(value, DefaultTCPAddr(service))
}

// HTTPBaseURL returns http://<service-host:port>, or "" for unknown services.
func HTTPBaseURL(service string) string {
	addr := defaultAddr(strings.TrimSpace(service), httpPorts)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// ResolveHTTPBaseURL expands the "discover" sentinel to the service
// convention and returns any other value trimmed.
func ResolveHTTPBaseURL(value, service string) string {
	value = strings.TrimSpace(value)
	if value == Discover {
		return HTTPBaseURL(service)
	}
	return value
}

// Discover asks for the conventional address of a collaborator.
const Discover = "discover"

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return fallback
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
