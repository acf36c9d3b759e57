// Package cache implements a size-bounded, recency-ordered key/value
// store: a strict LRU cache whose byte budget is the sum of |key|+|value|
// over resident entries.
package cache
