package flags

import "context"

// Rule targets a variation at matching contexts. Empty criteria match
// anything; a rule with no criteria matches every context.
type Rule struct {
	Tier   string   `yaml:"tier"`
	Users  []string `yaml:"users"`
	Org    string   `yaml:"org"`
	Role   string   `yaml:"role"`
	Config AIConfig `yaml:"config"`
}

func (r Rule) matches(c Context) bool {
	if r.Tier != "" && r.Tier != c.Tier {
		return false
	}
	if r.Org != "" && r.Org != c.OrgKey {
		return false
	}
	if r.Role != "" && r.Role != c.Role {
		return false
	}
	if len(r.Users) > 0 {
		for _, u := range r.Users {
			if u == c.UserKey {
				return true
			}
		}
		return false
	}
	return true
}

// Static serves variations from local rules. The first matching rule wins
// and is overlaid on the default variation.
type Static struct {
	def   AIConfig
	rules []Rule
}

// NewStatic returns a Static resolver. A default with no provider falls
// back to DefaultAIConfig.
func NewStatic(def AIConfig, rules []Rule) *Static {
	return &Static{def: Overlay(DefaultAIConfig(), def), rules: rules}
}

// Resolve implements Resolver. It never fails.
func (s *Static) Resolve(_ context.Context, c Context) (AIConfig, error) {
	for _, r := range s.rules {
		if r.matches(c) {
			return Overlay(s.def, r.Config), nil
		}
	}
	return s.def, nil
}
