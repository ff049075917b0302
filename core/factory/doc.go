// Package factory builds pluggable modules from configuration. A module is
// named by a type string and carries a raw settings map that its factory
// decodes into a typed struct with Decode.
package factory
