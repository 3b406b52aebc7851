// Package config declares the manager's configuration shape and loads
// it through internal/confloader, with precedence default < file < env
// matching the rest of the client library.
package config
