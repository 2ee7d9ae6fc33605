// Package config provides centralized configuration management for the
// dustmited runtime. It loads a single JSON document, fills in conservative
// defaults for every subsystem, and resolves secrets indirected through
// environment variables so credentials never need to live in the file itself.
package config
