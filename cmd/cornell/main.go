// Package main is the entry point for the cornell binary.
//
// The binary serves the notes HTTP API (cornell serve) and exposes the same operations as
// one-shot commands for scripting:
//   - capture <url>: load a page, screenshot it, and save a note.
//   - list, tags: read the saved notes and their tag vocabulary.
//   - tag <uid> <tag>, untag <tag>: toggle one tag on a note, or remove a tag from every note.
//   - rm <uid>: delete a note and its screenshot.
//   - rendition <uid>: print the CDN URL of a note's screenshot at a given width.
//
// Configuration comes from the optional --config file and CORNELL_* environment variables.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
