// Package file provides the TOML configuration store and the loader that
// decodes it into domain.Config.
package file
