// Package crawler implements the review-harvesting pipeline: critic discovery
// over a movie's review-listing pages, offset-paginated retrieval of each
// critic's review feed with per-critic failure tracking, a single retry pass,
// and the Engine that drives them in order.
package crawler
