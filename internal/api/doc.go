// Package api exposes the attachment service over HTTP. Handlers decode
// requests, call the service, and translate its error kinds into status codes
// and JSON error bodies that never carry internal details.
package api
