// Package server provides the HTTP surface: the elevated command endpoint
// for zone entry, the host's disconnect/reconnect webhooks, catalog reload,
// and the health and metrics routes.
package server
