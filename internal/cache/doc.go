// Package cache stores synthesized speech so repeated reads of the same text
// with the same voice skip the network. It layers an in-memory LRU over a
// zstd compressed directory of payloads.
package cache
