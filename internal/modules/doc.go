// Package modules ships the built-in state slices of the ecosystem
// dashboard: user session, projects, meetings, chat, notifications and
// UI chrome. Each module owns its slice shape and mutation set; server
// traffic goes through the shared API client handed in at construction.
package modules
