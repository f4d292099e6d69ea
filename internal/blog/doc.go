// Package blog parses blog index and post pages with goquery. Selectors are
// data, not code: the defaults match the Divi-themed listing the harvester was
// first written for, and every one of them can be overridden in configuration.
package blog
