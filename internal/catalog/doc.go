// Package catalog holds the curated track library used for tempo-matched
// audio selection. The library is a TOML file of artist, title, BPM, and
// source platform entries; lookups filter by a BPM window and pick a
// random match.
package catalog
