// Package config loads service definitions from JSON or YAML files.
//
// A single file holds one definition. Directory loading reads every
// .json/.yaml/.yml file, validates and normalizes each definition, and
// reports per-file errors without aborting the rest: one broken definition
// never prevents the others from starting.
package config
