package frame

import "fmt"

// Schema is a dataset's ordered column names plus per-column domains.
// By convention the last column of a supervised schema is the response.
type Schema struct {
	Names   []string
	Domains []*Domain
}

// NewSchema validates that names are unique and domains line up with names.
func NewSchema(names []string, domains []*Domain) (Schema, error) {
	if domains == nil {
		domains = make([]*Domain, len(names))
	}
	if len(names) != len(domains) {
		return Schema{}, fmt.Errorf("schema has %d names but %d domains", len(names), len(domains))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return Schema{}, fmt.Errorf("duplicate column name %q", n)
		}
		seen[n] = true
	}
	return Schema{Names: names, Domains: domains}, nil
}

// NumCols returns the number of columns
func (s Schema) NumCols() int {
	return len(s.Names)
}

// Find returns the column position of name, or -1.
func (s Schema) Find(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// ResponseName returns the last column name, or "" for an empty schema.
func (s Schema) ResponseName() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[len(s.Names)-1]
}

// IsCategorical reports whether column i has a domain.
func (s Schema) IsCategorical(i int) bool {
	return s.Domains[i] != nil
}

// Equal compares names and domains position by position.
func (s Schema) Equal(o Schema) bool {
	if len(s.Names) != len(o.Names) || len(s.Domains) != len(o.Domains) {
		return false
	}
	for i := range s.Names {
		if s.Names[i] != o.Names[i] || !s.Domains[i].Equal(o.Domains[i]) {
			return false
		}
	}
	return true
}
