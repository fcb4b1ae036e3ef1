package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrNoPages is returned by PickPage when there is nothing to choose.
var ErrNoPages = errors.New("no pages to pick from")

// PageOptions builds the picker options, favorites first.
func PageOptions(pages, favorites []string) []huh.Option[string] {
	seen := make(map[string]bool, len(favorites))
	var opts []huh.Option[string]
	for _, f := range favorites {
		if seen[f] {
			continue
		}
		seen[f] = true
		opts = append(opts, huh.NewOption("★ "+f, f))
	}
	for _, p := range pages {
		if seen[p] {
			continue
		}
		opts = append(opts, huh.NewOption(p, p))
	}
	return opts
}

// NewPageForm returns the page picker form writing the choice to dst.
func NewPageForm(pages, favorites []string, dst *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Page").
				Description("Pick the page to map").
				Options(PageOptions(pages, favorites)...).
				Height(15).
				Value(dst),
		),
	)
}

// PickPage runs the picker in the terminal and returns the chosen page.
func PickPage(pages, favorites []string) (string, error) {
	if len(pages) == 0 && len(favorites) == 0 {
		return "", ErrNoPages
	}
	var choice string
	if err := NewPageForm(pages, favorites, &choice).Run(); err != nil {
		return "", fmt.Errorf("page picker: %w", err)
	}
	return choice, nil
}
