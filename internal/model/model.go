// Package model defines the domain types used across the application.
package model

import "time"

// ResultItem is a single hit returned by the forum search.
// The session stores and orders items but never inspects them.
type ResultItem struct {
	ThreadTitle string
	ThreadLink  string
	Username    string
	ForumTitle  string
	ForumID     int
	Blurb       string
	PostDate    string
}

// SearchResult is the server's answer to a new query.
// QueryID 0 means the server found nothing.
type SearchResult struct {
	QueryID int
	Pages   int
	Items   []ResultItem
}

// FilterToken is the persisted form of a search filter.
type FilterToken struct {
	Kind  string
	Param string
}

// Snapshot holds the inputs of a chat's search session so it can be
// restored after a restart.
type Snapshot struct {
	ChatID    int64
	FreeText  string
	ForumIDs  []int
	Filters   []FilterToken
	UpdatedAt time.Time
}
