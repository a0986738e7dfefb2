package automation

import (
	"fmt"
	"strings"

	"socialflow/internal/models"
)

// Matches reports whether an event satisfies a flow's trigger. Trigger type
// and flow status are filtered by the flow query, not here.
func Matches(trigger models.Trigger, ev Event) bool {
	if len(trigger.Keywords) > 0 {
		text := strings.ToLower(ev.Text())
		hit := false
		for _, kw := range trigger.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if trigger.PostID != "" && ev.PostID() != trigger.PostID {
		return false
	}

	return Evaluate(trigger.Conditions, ev)
}

// Evaluate walks a predicate tree. An empty tree is true; a tree with an
// unsupported version is false.
func Evaluate(p *models.Predicate, ev Event) bool {
	if p.IsEmpty() {
		return true
	}
	if p.Version != models.PredicateVersion {
		return false
	}
	return evalNode(*p, ev)
}

func evalNode(p models.Predicate, ev Event) bool {
	switch {
	case len(p.All) > 0:
		for _, child := range p.All {
			if !evalNode(child, ev) {
				return false
			}
		}
		return true
	case len(p.Any) > 0:
		for _, child := range p.Any {
			if evalNode(child, ev) {
				return true
			}
		}
		return false
	case p.Not != nil:
		return !evalNode(*p.Not, ev)
	case p.Field != "":
		return compare(ev, p.Field, p.Operator, p.Value)
	default:
		return true
	}
}

// ValidatePredicate rejects trees the engine would silently ignore.
func ValidatePredicate(p *models.Predicate) error {
	if p.IsEmpty() {
		return nil
	}
	if p.Version != models.PredicateVersion {
		return fmt.Errorf("conditions: unsupported version %d", p.Version)
	}
	return validateNode(*p, "conditions")
}

func validateNode(p models.Predicate, path string) error {
	set := 0
	if len(p.All) > 0 {
		set++
	}
	if len(p.Any) > 0 {
		set++
	}
	if p.Not != nil {
		set++
	}
	if p.Field != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%s: node must set exactly one of all, any, not, field", path)
	}

	for i, child := range p.All {
		if err := validateNode(child, fmt.Sprintf("%s.all[%d]", path, i)); err != nil {
			return err
		}
	}
	for i, child := range p.Any {
		if err := validateNode(child, fmt.Sprintf("%s.any[%d]", path, i)); err != nil {
			return err
		}
	}
	if p.Not != nil {
		return validateNode(*p.Not, path+".not")
	}
	if p.Field != "" {
		switch p.Operator {
		case OpEquals, OpContains, OpGreaterThan, OpLessThan:
		default:
			return fmt.Errorf("%s: unknown operator %q", path, p.Operator)
		}
	}
	return nil
}
