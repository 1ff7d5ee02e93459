// Package server holds the HTTP server configuration.
//
// The main application entry point handles the server startup; this package
// only defines the configuration structure embedded by core/config: the
// listen port and the API key protecting the ingestion and query endpoints.
package server
