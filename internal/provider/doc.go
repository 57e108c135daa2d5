// Package provider defines the interfaces and error taxonomy for the
// external inference services: vision-based menu extraction and per-dish
// image generation. These interfaces are the boundary between the
// application core and the AI backends, following the hexagonal
// architecture pattern.
package provider
