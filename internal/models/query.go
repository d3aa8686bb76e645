// internal/models/query.go
package models

// Filters are caller-supplied search constraints. Explicit values always win
// over AI-derived ones.
type Filters struct {
	Category string   `json:"category,omitempty"`
	MinPrice *float64 `json:"minPrice,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// Query is the interpreted form of a raw search string. Built once per
// request, immutable afterwards, never persisted.
type Query struct {
	RawText         string   `json:"rawText"`
	NormalizedTerms []string `json:"normalizedTerms"`
	Category        string   `json:"category,omitempty"`
	MinPrice        *float64 `json:"minPrice,omitempty"`
	MaxPrice        *float64 `json:"maxPrice,omitempty"`
	Brands          []string `json:"brands,omitempty"`
	Features        []string `json:"features,omitempty"`
	QualityTerms    []string `json:"qualityTerms,omitempty"`
	AIKeywords      []string `json:"aiKeywords,omitempty"`
	AIEnhanced      bool     `json:"aiEnhanced"`
}

// SearchRequest is the inbound search call.
type SearchRequest struct {
	QueryText        string  `json:"queryText"`
	Filters          Filters `json:"filters"`
	UseAIEnhancement bool    `json:"useAiEnhancement"`
	Page             int     `json:"page"`
	PageSize         int     `json:"pageSize"`
}

// RankedDeal is one entry of the final ordered output.
type RankedDeal struct {
	Product        RawProduct `json:"product"`
	RelevanceScore float64    `json:"relevanceScore"`
	MatchingScore  float64    `json:"matchingScore"`
	DealScore      *float64   `json:"dealScore,omitempty"` // [0,100] when known
	FinalScore     float64    `json:"finalScore"`
	MatchedTerms   []string   `json:"matchedTerms,omitempty"`
}

// SearchResult is the well-formed response envelope. On internal failure it
// is returned empty with Error populated instead of propagating a panic or
// error to the caller.
type SearchResult struct {
	Deals           []RankedDeal `json:"deals"`
	Count           int          `json:"count"`
	Total           int          `json:"total"`
	Page            int          `json:"page"`
	Pages           int          `json:"pages"`
	ExecutionTimeMs int64        `json:"executionTimeMs"`
	AIEnhanced      bool         `json:"aiEnhanced"`
	Error           string       `json:"error,omitempty"`
}
