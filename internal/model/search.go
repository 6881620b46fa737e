package model

import "strings"

// SearchSet holds the saved search terms.
type SearchSet struct {
	Object
	searches *Children[*Search]
}

func NewSearchSet() *SearchSet {
	s := &SearchSet{}
	s.init(s, "searches")
	s.searches = newChildren(s, func(v *Search) string { return foldKey(v.name) })
	return s
}

func (s *SearchSet) children() []Node { return nodes(s.searches.items) }

func (s *SearchSet) Searches() *Children[*Search] { return s.searches }

func (s *SearchSet) Search(term string) *Search {
	v, _ := s.searches.ByName(strings.TrimSpace(term))
	return v
}

// AddSearch attaches term and reports whether it was new.
func (s *SearchSet) AddSearch(term string) (*Search, bool) {
	v := NewSearch(term)
	if s.searches.Add(v) {
		return v, true
	}
	return s.Search(term), false
}

// RemoveSearch removes term and reports whether it existed.
func (s *SearchSet) RemoveSearch(term string) bool {
	v := s.Search(term)
	if v == nil {
		return false
	}
	return s.searches.Remove(v)
}

func (s *SearchSet) CommitAll() { commitTree(s) }

// Search is a saved search term; its name is the term.
type Search struct {
	Object
}

func NewSearch(term string) *Search {
	s := &Search{}
	s.init(s, strings.TrimSpace(term))
	s.enabled = true
	return s
}
