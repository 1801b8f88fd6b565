// Package app bootstraps chapterbase: it loads configuration, sets up
// logging and builds the session store, OAuth client and session controller
// shared by all commands.
package app
