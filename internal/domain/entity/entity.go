// Package entity defines the core domain types of the crawler: tracked sources,
// discovered feeds and their entries, screenshot artifacts, the persisted crawl
// state and the per-run report, together with their validation rules and
// domain-specific errors.
package entity
