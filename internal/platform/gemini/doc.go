// Package gemini implements the provider interfaces using Google's Gemini
// API family: multimodal Gemini models for menu extraction and either the
// Gemini image model or Imagen for dish image generation.
package gemini
