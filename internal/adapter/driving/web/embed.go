package web

import "embed"

// StaticFS holds the embedded static assets.
//
//go:embed static/*
var StaticFS embed.FS
