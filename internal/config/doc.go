// Package config provides configuration structures and utilities for the
// crawler. It defines the crawl, request and report options, loads the
// optional .webcrawler YAML file and resolves XDG directories.
package config
