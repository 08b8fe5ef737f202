// Package web holds the server-rendered templates and static assets.
package web

import "embed"

// TemplatesFS embeds the page templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and other static files.
//
//go:embed static/*
var StaticFS embed.FS
