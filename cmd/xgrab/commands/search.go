package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/state"
)

// SearchCmd groups the saved search subcommands. They edit the searches
// aggregate directly and must not run while the daemon owns the data directory.
type SearchCmd struct {
	Add    SearchAddCmd    `cmd:"" help:"Save a search term"`
	Remove SearchRemoveCmd `cmd:"" help:"Delete a saved search term"`
	List   SearchListCmd   `cmd:"" help:"List saved search terms"`
}

type SearchAddCmd struct {
	Term string `arg:"" help:"Search term"`
}

type SearchRemoveCmd struct {
	Term string `arg:"" help:"Search term"`
}

type SearchListCmd struct{}

func openStore(root *CLI) (*state.Store, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	backend, err := state.NewFileBackend(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	return state.Open(backend, state.Options{}), nil
}

func (c *SearchAddCmd) Run(g *Global, root *CLI) error {
	term := strings.TrimSpace(c.Term)
	if term == "" {
		return errors.ValidationError("search term must not be empty").Build()
	}
	store, err := openStore(root)
	if err != nil {
		return err
	}
	if _, added := store.Searches().AddSearch(term); !added {
		_, _ = fmt.Fprintf(g.Out, "search %q already saved\n", term)
		return nil
	}
	if err := store.Save(state.KindSearches); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "saved search %q\n", term)
	return nil
}

func (c *SearchRemoveCmd) Run(g *Global, root *CLI) error {
	store, err := openStore(root)
	if err != nil {
		return err
	}
	if !store.Searches().RemoveSearch(c.Term) {
		return errors.NotFoundError("search not found").WithContext("term", c.Term).Build()
	}
	if err := store.Save(state.KindSearches); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.Out, "removed search %q\n", c.Term)
	return nil
}

func (c *SearchListCmd) Run(g *Global, root *CLI) error {
	store, err := openStore(root)
	if err != nil {
		return err
	}
	for _, s := range store.Searches().Searches().All() {
		_, _ = fmt.Fprintln(g.Out, s.Name())
	}
	return nil
}
