// Package infra contains technical adapters such as the in-memory store,
// the MQTT fleet feed and telemetry exporters. These packages should depend
// only on the interfaces defined in the core packages.
package infra
