// Package codec reads and writes record lists as JSON or YAML.
package codec
